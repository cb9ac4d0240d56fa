package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BioHazard786/Questroom/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms", r.URL.Path)
		json.NewEncoder(w).Encode([]protocol.RoomInfo{
			{ID: "calm-stone-lake-otter", Capacity: 4, Peers: []protocol.PeerInfo{{ID: "a", Name: "quest-a"}}},
		})
	}))
	defer srv.Close()

	rooms, err := ListRooms(context.Background(), srv.URL+"/rooms")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "calm-stone-lake-otter", rooms[0].ID)
	assert.Equal(t, 1, rooms[0].PeerCount())
}

func TestListRoomsRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		}, "unexpected status"},
		{"body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{"))
		}, "decode room list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := ListRooms(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
