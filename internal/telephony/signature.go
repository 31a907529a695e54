package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"leadline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Twilio signs every webhook with HMAC-SHA1 over the full request URL
// followed by the POST parameters sorted by name, each appended as
// name+value, keyed with the account auth token and base64-encoded.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests

// ComputeSignature produces the expected X-Twilio-Signature value for a
// request to fullURL carrying the given form parameters.
func ComputeSignature(authToken, fullURL string, form url.Values) string {
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, name := range names {
		for _, v := range form[name] {
			b.WriteString(name)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature checks a received signature in constant time.
func ValidSignature(authToken, fullURL string, form url.Values, got string) bool {
	want := ComputeSignature(authToken, fullURL, form)
	return hmac.Equal([]byte(want), []byte(got))
}

// SignatureMiddleware rejects webhook deliveries whose signature does
// not verify. The expected URL is rebuilt from the configured public
// base URL because the server usually sits behind a proxy and the Host
// header cannot be trusted for signing.
func SignatureMiddleware(authToken, baseURL string) gin.HandlerFunc {
	base := strings.TrimRight(baseURL, "/")

	return func(c *gin.Context) {
		log := logger.FromGin(c)

		if err := c.Request.ParseForm(); err != nil {
			log.Warn("webhook form parse failed", "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}

		fullURL := base + c.Request.URL.RequestURI()
		got := c.GetHeader("X-Twilio-Signature")
		if got == "" || !ValidSignature(authToken, fullURL, c.Request.PostForm, got) {
			log.Warn("webhook signature mismatch", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}

		c.Next()
	}
}
