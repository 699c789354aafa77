package utils

import (
	"github.com/mojocn/base64Captcha"
)

// GenerateCaptcha creates a digit captcha in store and returns its id and a data URI for the <img> tag.
func GenerateCaptcha(store base64Captcha.Store) (string, string, error) {
	// height 40, width 120, 5 digits
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	c := base64Captcha.NewCaptcha(driver, store)
	id, b64, _, err := c.Generate()
	return id, b64, err
}

// VerifyCaptcha checks the answer and consumes the captcha whatever the outcome.
func VerifyCaptcha(store base64Captcha.Store, id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return store.Verify(id, answer, true)
}
