package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/medbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", "medbooking")
	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}

	token, err := m.Issue(actor, time.Hour)
	require.NoError(t, err)

	got, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", "medbooking")
	actor := domain.Actor{ID: uuid.New(), Role: domain.RolePatient}

	expired, err := m.Issue(actor, -time.Minute)
	require.NoError(t, err)
	_, err = m.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewTokenManager("other", "medbooking").Issue(actor, time.Hour)
	require.NoError(t, err)
	_, err = m.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokenManager("secret", "elsewhere").Issue(actor, time.Hour)
	require.NoError(t, err)
	_, err = m.Parse(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	system, err := m.Issue(domain.Actor{ID: uuid.New(), Role: domain.RoleSystem}, time.Hour)
	require.NoError(t, err)
	_, err = m.Parse(system)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewTokenManager("secret", "")
	actor := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	token, err := m.Issue(actor, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Middleware(m), func(c *gin.Context) {
		got, ok := ActorFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": got.ID.String(), "role": got.Role})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
