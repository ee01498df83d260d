package polymind

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestClientAuthentication(t *testing.T) {
	t.Run("InitDataHeader", func(t *testing.T) {
		var gotAuth, gotUserID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotUserID = r.URL.Query().Get("user_id")
			json.NewEncoder(w).Encode([]Chat{})
		}))
		defer srv.Close()

		client := NewClient(
			WithBaseURL(srv.URL),
			WithIdentity(StaticIdentity{Token: "init-data-blob", User: "42"}),
			WithFallbackUserID("42"),
			WithLogger(discardLogger()),
		)

		_, err := client.ListSessions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tma init-data-blob", gotAuth)
		assert.Empty(t, gotUserID, "user_id fallback must not be sent when a token exists")
	})

	t.Run("UserIDFallback", func(t *testing.T) {
		var gotAuth, gotUserID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotUserID = r.URL.Query().Get("user_id")
			json.NewEncoder(w).Encode([]Chat{})
		}))
		defer srv.Close()

		client := NewClient(
			WithBaseURL(srv.URL),
			WithIdentity(StaticIdentity{User: "42"}),
			WithFallbackUserID("42"),
			WithLogger(discardLogger()),
		)

		_, err := client.ListSessions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, gotAuth)
		assert.Equal(t, "42", gotUserID)
	})
}

func TestClientStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithLogger(discardLogger()))

	err := client.DeleteChat(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
	assert.Contains(t, err.Error(), "404")
}

func TestClientListChatsDefaults(t *testing.T) {
	var gotLimit, gotOffset string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		gotOffset = r.URL.Query().Get("offset")
		json.NewEncoder(w).Encode([]Chat{})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithLogger(discardLogger()))

	_, err := client.ListChats(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "50", gotLimit)
	assert.Equal(t, "0", gotOffset)
}

func TestClientGetMessagesModelQuery(t *testing.T) {
	var gotPath, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotModel = r.URL.Query().Get("model")
		json.NewEncoder(w).Encode([]Message{})
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithLogger(discardLogger()))

	_, err := client.GetMessages(context.Background(), "abc-123", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "/webapp/messages/abc-123", gotPath)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}
