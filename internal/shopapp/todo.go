package shopapp

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	categoryParameter        = "category"
	currentCategoryParameter = "current_category"
)

type todoPage struct {
	Category   string
	Categories []string
	Tasks      []model.Task
}

// tasksURL returns the task list, filtered to category when it names one.
func (app *App) tasksURL(category string) string {
	target := app.todoURL(pageTodoIndex)
	if model.IsTaskCategory(category) {
		target += "?" + url.Values{categoryParameter: {category}}.Encode()
	}
	return target
}

func (app *App) renderTasks(context *gin.Context) {
	category := context.Query(categoryParameter)
	query := app.database.WithContext(context.Request.Context()).Order("id")
	if model.IsTaskCategory(category) {
		query = query.Where("category = ?", category)
	} else {
		category = ""
	}
	var tasks []model.Task
	if findErr := query.Find(&tasks).Error; findErr != nil {
		app.fail(context, "list tasks", findErr)
		return
	}
	app.render(context, http.StatusOK, templateTodo, todoPage{
		Category:   category,
		Categories: model.TaskCategories,
		Tasks:      tasks,
	})
}

// submitTasks handles both forms of the page: adding a task and saving the completed
// checkboxes of the tasks shown.
func (app *App) submitTasks(context *gin.Context) {
	if currentCategory, updating := context.GetPostForm(currentCategoryParameter); updating {
		app.updateTasks(context, currentCategory)
		return
	}

	task, taskErr := model.NewTask(context.PostForm("title"), context.PostForm(categoryParameter))
	if taskErr == nil {
		if createErr := app.database.WithContext(context.Request.Context()).Create(&task).Error; createErr != nil {
			app.fail(context, "add task", createErr)
			return
		}
	}
	context.Redirect(http.StatusFound, app.tasksURL(""))
}

func (app *App) updateTasks(context *gin.Context, currentCategory string) {
	completed := context.PostFormArray("completed[]")
	shown := context.PostFormArray("shown[]")

	updateErr := app.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		for _, taskField := range shown {
			taskID, parseErr := strconv.ParseUint(taskField, 10, 64)
			if parseErr != nil {
				continue
			}
			done := lo.Contains(completed, taskField)
			if saveErr := transaction.Model(&model.Task{}).Where("id = ?", taskID).Update("completed", done).Error; saveErr != nil {
				return saveErr
			}
		}
		return nil
	})
	if updateErr != nil {
		app.fail(context, "update tasks", updateErr)
		return
	}
	context.Redirect(http.StatusFound, app.tasksURL(currentCategory))
}

func (app *App) deleteTask(context *gin.Context) {
	taskID, parseErr := strconv.ParseUint(context.Query("id"), 10, 64)
	if parseErr == nil {
		if deleteErr := app.database.WithContext(context.Request.Context()).Delete(&model.Task{}, taskID).Error; deleteErr != nil {
			app.fail(context, "delete task", deleteErr)
			return
		}
	}
	context.Redirect(http.StatusFound, app.tasksURL(""))
}
