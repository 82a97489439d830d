package shopapp

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	contextKeySession = "shopapp_session"

	sessionValueID       = "sid"
	sessionValueUserID   = "user_id"
	sessionValueUsername = "username"
	sessionValueRole     = "role"

	logEventLoadSession = "load_session"
	logEventSaveSession = "save_session"
)

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// currentUser is the signed-in account a session carries.
type currentUser struct {
	ID       int64
	Username string
	Role     string
}

// sessionMiddleware starts a session on every request and issues the cookie for new
// ones, the way session_start does.
func (app *App) sessionMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		sessionInstance, sessionErr := app.sessionStore.Get(context.Request, SessionCookieName)
		if sessionErr != nil {
			app.logger.Warn(logEventLoadSession, zap.Error(sessionErr))
		}
		if sessionInstance.IsNew {
			sessionInstance.Values[sessionValueID] = uuid.NewString()
			app.saveSession(context, sessionInstance)
		}
		context.Set(contextKeySession, sessionInstance)
		context.Next()
	}
}

func (app *App) session(context *gin.Context) *sessions.Session {
	value, _ := context.Get(contextKeySession)
	sessionInstance, _ := value.(*sessions.Session)
	return sessionInstance
}

func (app *App) saveSession(context *gin.Context, sessionInstance *sessions.Session) {
	if saveErr := sessionInstance.Save(context.Request, context.Writer); saveErr != nil {
		app.logger.Error(logEventSaveSession, zap.Error(saveErr))
	}
}

func (app *App) currentUser(context *gin.Context) (currentUser, bool) {
	sessionInstance := app.session(context)
	if sessionInstance == nil {
		return currentUser{}, false
	}
	userID, hasID := sessionInstance.Values[sessionValueUserID].(int64)
	username, _ := sessionInstance.Values[sessionValueUsername].(string)
	role, _ := sessionInstance.Values[sessionValueRole].(string)
	if !hasID || strings.TrimSpace(username) == "" {
		return currentUser{}, false
	}
	return currentUser{ID: userID, Username: username, Role: role}, true
}

// signIn rotates the session id and records user on it.
func (app *App) signIn(context *gin.Context, user currentUser) {
	sessionInstance := app.session(context)
	sessionInstance.Values[sessionValueID] = uuid.NewString()
	sessionInstance.Values[sessionValueUserID] = user.ID
	sessionInstance.Values[sessionValueUsername] = user.Username
	sessionInstance.Values[sessionValueRole] = user.Role
	app.saveSession(context, sessionInstance)
}

func (app *App) signOut(context *gin.Context) {
	sessionInstance := app.session(context)
	delete(sessionInstance.Values, sessionValueUserID)
	delete(sessionInstance.Values, sessionValueUsername)
	delete(sessionInstance.Values, sessionValueRole)
	app.saveSession(context, sessionInstance)
}

// requireRole sends visitors without a session of role back to the login page.
func (app *App) requireRole(role string) gin.HandlerFunc {
	return func(context *gin.Context) {
		user, signedIn := app.currentUser(context)
		if !signedIn || user.Role != role {
			context.Redirect(http.StatusFound, app.shopURL(pageLogin))
			context.Abort()
			return
		}
		context.Next()
	}
}
