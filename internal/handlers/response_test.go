package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Gopher0727/Rally/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&services.ValidationError{Field: "name", Reason: "must not be empty"}, http.StatusBadRequest},
		{fmt.Errorf("get group: %w", services.ErrNotFound), http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrUsernameTaken, http.StatusConflict},
		{&services.RemoteWriteError{Op: "backfill profile", Err: errors.New("disk full")}, http.StatusServiceUnavailable},
		// 补建资料时用户名耗尽是服务端问题，不能当成注册冲突
		{services.ErrNameExhausted, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, msg := classify(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.NotEmpty(t, msg)
	}
}
