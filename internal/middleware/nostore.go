package middleware

import "github.com/gin-gonic/gin"

const noStoreValue = "private, max-age=0, no-cache, no-store, must-revalidate"

// NoStore marks every response uncacheable. Token material must never land
// in a shared or CDN cache, so the headers go on unconditionally.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", noStoreValue)
		h.Set("Cdn-Cache-Control", noStoreValue)
		h.Set("Pragma", "no-cache")
		c.Next()
	}
}
