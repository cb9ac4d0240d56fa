package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BioHazard786/Questroom/internal/protocol"
)

var roomsClient = &http.Client{Timeout: 10 * time.Second}

// ListRooms fetches the open rooms from the relay's directory endpoint.
func ListRooms(ctx context.Context, roomsURL string) ([]protocol.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, roomsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := roomsClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list rooms: unexpected status %s", resp.Status)
	}

	var rooms []protocol.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("decode room list: %w", err)
	}
	return rooms, nil
}
