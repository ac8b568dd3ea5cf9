package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 2, 5*time.Second)
}

func TestListUsers_PagesUntilShortPage(t *testing.T) {
	pages := map[string][]map[string]string{
		"1": {{"id": "u1", "email": "A@example.com"}, {"id": "u2", "email": "b@example.com"}},
		"2": {{"id": "u3", "email": ""}, {"id": "u4", "email": "d@example.com"}},
		"3": {{"id": "u5", "email": "e@example.com"}},
	}

	var requestedPages []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)

		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)
		json.NewEncoder(w).Encode(map[string]any{"users": pages[page]})
	})

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, requestedPages)
	// u3 has no email and is skipped; emails are lowercased.
	require.Len(t, users, 4)
	assert.Equal(t, "a@example.com", users[0].Email)
	assert.Equal(t, "u5", users[3].ID)
}

func TestCreateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/admin/users", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jane@example.com", body["email"])
		assert.Equal(t, true, body["email_confirm"])
		meta, ok := body["user_metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Jane", meta["first_name"])

		json.NewEncoder(w).Encode(map[string]string{"id": "new-id", "email": "jane@example.com"})
	})

	user, err := client.CreateUser(context.Background(), UserParams{
		Email:     "jane@example.com",
		Password:  "Str0ng!Str0ng!",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", user.ID)
}

func TestUpdateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/auth/v1/admin/users/user-7", r.URL.Path)
		fmt.Fprint(w, `{}`)
	})

	err := client.UpdateUser(context.Background(), "user-7", UserParams{Email: "jane@example.com"})
	require.NoError(t, err)
}

func TestUpdateUser_OmitsEmptyPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasPassword := body["password"]
		assert.False(t, hasPassword, "empty password must not be sent")

		meta, ok := body["user_metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "DM01", meta["contractor_code"])

		fmt.Fprint(w, `{}`)
	})

	err := client.UpdateUser(context.Background(), "user-7", UserParams{
		Email:          "jane@example.com",
		FirstName:      "Jane",
		LastName:       "Doe",
		ContractorCode: "DM01",
	})
	require.NoError(t, err)
}

func TestErrorBodySurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"msg":"email address already registered"}`)
	})

	_, err := client.CreateUser(context.Background(), UserParams{Email: "dup@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "email address already registered")
}

func TestCreateUser_MissingIDRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"email":"jane@example.com"}`)
	})

	_, err := client.CreateUser(context.Background(), UserParams{Email: "jane@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}
