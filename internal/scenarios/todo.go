package scenarios

import (
	"context"
	"net/url"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	groupTodo = "todo"

	todoTitlePrefix   = "Test Task"
	categoryParameter = "category"
)

func todoScenarios() []harness.Scenario {
	return []harness.Scenario{
		{Name: "todo/lifecycle", Group: groupTodo, Run: taskLifecycleReachesStore},
	}
}

// taskLifecycleReachesStore adds a weekly task, completes it and deletes it, checking the
// store after every step.
func taskLifecycleReachesStore(ctx context.Context, testCase *harness.Case) error {
	title := shopdata.UniqueName(todoTitlePrefix)
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	testCase.Cleanup("delete task "+title, func(ctx context.Context) error {
		_, deleteErr := store.DeleteTasksByTitle(ctx, title)
		return deleteErr
	})

	if navigateErr := testCase.NavigateTodo(ctx, PathTodo); navigateErr != nil {
		return navigateErr
	}
	if fillErr := testCase.Fill(ctx, taskTitleField, title); fillErr != nil {
		return fillErr
	}
	if selectErr := testCase.Select(ctx, taskCategorySelect, model.TaskCategoryWeekly); selectErr != nil {
		return selectErr
	}
	if clickErr := testCase.Click(ctx, taskSubmitButton); clickErr != nil {
		return clickErr
	}

	var stored shopdata.Task
	if waitErr := waitForStore(ctx, testCase, "task "+title+" stored", func(ctx context.Context) (bool, error) {
		task, found, lookupErr := store.TaskByTitle(ctx, title)
		stored = task
		return found, lookupErr
	}); waitErr != nil {
		return waitErr
	}
	if compareErr := harness.Compare(testCase, stored.Category, model.TaskCategoryWeekly, check.ExactEquality[string]()); compareErr != nil {
		return compareErr
	}

	weekly := PathTodo + "?" + url.Values{categoryParameter: {model.TaskCategoryWeekly}}.Encode()
	if navigateErr := testCase.NavigateTodo(ctx, weekly); navigateErr != nil {
		return navigateErr
	}
	if _, rowErr := testCase.Element(ctx, taskCell(title)); rowErr != nil {
		return rowErr
	}
	if clickErr := testCase.Click(ctx, taskCheckbox(title)); clickErr != nil {
		return clickErr
	}
	if clickErr := testCase.Click(ctx, updateTasksButton); clickErr != nil {
		return clickErr
	}
	if waitErr := waitForStore(ctx, testCase, "task "+title+" completed", func(ctx context.Context) (bool, error) {
		task, found, lookupErr := store.TaskByTitle(ctx, title)
		stored = task
		return found && task.Completed, lookupErr
	}); waitErr != nil {
		return waitErr
	}

	if navigateErr := testCase.NavigateTodo(ctx, weekly); navigateErr != nil {
		return navigateErr
	}
	if clickErr := testCase.Click(ctx, taskDeleteLink(title)); clickErr != nil {
		return clickErr
	}
	if waitErr := waitForStore(ctx, testCase, "task "+title+" deleted", func(ctx context.Context) (bool, error) {
		_, found, lookupErr := store.TaskByTitle(ctx, title)
		return !found, lookupErr
	}); waitErr != nil {
		return waitErr
	}
	_, absentErr := testCase.WaitUntil(ctx, wait.ElementAbsent(taskCell(title)))
	return absentErr
}
