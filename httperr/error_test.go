package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Test_Write(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
		wantHeader string
	}{
		{"typed error", BadRequest("Invalid cursor"), http.StatusBadRequest, "Invalid cursor", ""},
		{"wrapped typed error", fmt.Errorf("list: %w", NotFound("Not found.")), http.StatusNotFound, "Not found.", ""},
		{"unauthorized sets challenge", Unauthorized("Invalid JWT Token."), http.StatusUnauthorized, "Invalid JWT Token.", "Bearer"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "Not found.", ""},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "Internal server error.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Write(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantHeader, rec.Header().Get("WWW-Authenticate"))

			var got body
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantDetail, got.Detail)
		})
	}
}

func Test_Error_WithDetails_DoesNotMutate(t *testing.T) {
	base := BadRequest("bad")
	withDetails := base.WithDetails(map[string]any{"field": "required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, "required", withDetails.Details["field"])
}

func Test_FromDB(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"nil", nil, 0},
		{"not found", fmt.Errorf("get: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{"duplicated", gorm.ErrDuplicatedKey, http.StatusBadRequest},
		{"fk translated", gorm.ErrForeignKeyViolated, http.StatusBadRequest},
		{"pg fk", &pgconn.PgError{Code: "23503"}, http.StatusBadRequest},
		{"pg check", &pgconn.PgError{Code: "23514", ConstraintName: "positive"}, http.StatusBadRequest},
		{"mysql referenced", &mysqldriver.MySQLError{Number: 1451}, http.StatusBadRequest},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), http.StatusBadRequest},
		{"other", errors.New("connection reset"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB(tt.err)
			e, ok := As(got)
			if tt.wantStatus == 0 {
				assert.False(t, ok)
				assert.Equal(t, tt.err, got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, e.Status)
		})
	}
}
