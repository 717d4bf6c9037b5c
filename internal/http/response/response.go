package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondRawJSON writes a stored JSON document unchanged.
func RespondRawJSON(c *gin.Context, raw []byte) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func RespondText(c *gin.Context, contentType, text string) {
	c.Data(http.StatusOK, contentType, []byte(text))
}
