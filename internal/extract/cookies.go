package extract

import (
	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

// CookieValue returns the value of the first cookie called name.
func CookieValue(cookies []browser.Cookie, name string) (string, bool) {
	cookie, found := lo.Find(cookies, func(cookie browser.Cookie) bool {
		return cookie.Name == name
	})
	return cookie.Value, found
}
