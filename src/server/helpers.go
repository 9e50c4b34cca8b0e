package server

import (
	"errors"
	"net/http"

	"bot-mirror/src/control"
	"bot-mirror/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// errorStatus maps a control failure onto the status shown to the dashboard.
// Bot rejections keep their 4xx; anything upstream is a bad gateway.
func errorStatus(err error) (int, string) {
	var reqErr *helpers.RequestError
	var transportErr *helpers.TransportError
	var protocolErr *helpers.ProtocolError
	var storageErr *helpers.StorageError

	switch {
	case errors.As(err, &reqErr):
		if reqErr.Status >= 400 && reqErr.Status < 500 {
			return reqErr.Status, reqErr.Detail
		}
		return http.StatusBadGateway, reqErr.Detail
	case errors.Is(err, control.ErrUnknownCommand):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, control.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &transportErr), errors.As(err, &protocolErr):
		return http.StatusBadGateway, err.Error()
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// -----------------------------------------------------------------------------

func respond(c *gin.Context, body interface{}, err error) {
	if err != nil {
		status, detail := errorStatus(err)
		c.JSON(status, gin.H{"detail": detail})
		return
	}
	c.JSON(http.StatusOK, body)
}
