package marketapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// ListStreams returns every stream with its markets nested.
// GET /api/streams?include=markets
func (c *Client) ListStreams(ctx context.Context) ([]domain.Stream, error) {
	body, err := c.doGet(ctx, "/api/streams?include=markets")
	if err != nil {
		return nil, fmt.Errorf("marketapi: list streams: %w", err)
	}

	apiStreams, err := decodeList[apiStream](body, "streams")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode streams: %w", err)
	}

	streams := make([]domain.Stream, 0, len(apiStreams))
	for i := range apiStreams {
		streams = append(streams, apiStreams[i].toDomain())
	}
	return streams, nil
}

// GetStream returns a single stream. A 404 unwraps to domain.ErrNotFound.
// GET /api/streams/:id
func (c *Client) GetStream(ctx context.Context, id string) (domain.Stream, error) {
	body, err := c.doGet(ctx, "/api/streams/"+url.PathEscape(id))
	if err != nil {
		return domain.Stream{}, fmt.Errorf("marketapi: get stream %s: %w", id, err)
	}

	s, err := decodeObject[apiStream](body, "stream")
	if err != nil {
		return domain.Stream{}, fmt.Errorf("marketapi: decode stream: %w", err)
	}
	if s.ID == "" {
		return domain.Stream{}, fmt.Errorf("marketapi: get stream %s: %w", id, domain.ErrNotFound)
	}
	return s.toDomain(), nil
}

// StreamMarkets returns the markets of one stream.
// GET /api/markets/stream/:id
func (c *Client) StreamMarkets(ctx context.Context, streamID string) ([]domain.Market, error) {
	body, err := c.doGet(ctx, "/api/markets/stream/"+url.PathEscape(streamID))
	if err != nil {
		return nil, fmt.Errorf("marketapi: stream markets %s: %w", streamID, err)
	}

	apiMarkets, err := decodeList[apiMarket](body, "markets")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := apiMarkets[i].toDomain()
		if m.StreamID == "" {
			m.StreamID = streamID
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// StreamTrend returns the odds series of a stream's markets over the last
// sinceMin minutes.
// GET /api/markets/streams/:id/trend?sinceMin=N
func (c *Client) StreamTrend(ctx context.Context, streamID string, sinceMin int) ([]domain.TrendPoint, error) {
	params := url.Values{}
	params.Set("sinceMin", strconv.Itoa(sinceMin))

	path := fmt.Sprintf("/api/markets/streams/%s/trend?%s", url.PathEscape(streamID), params.Encode())
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("marketapi: stream trend %s: %w", streamID, err)
	}

	apiPoints, err := decodeList[apiTrendPoint](body, "points")
	if err != nil {
		return nil, fmt.Errorf("marketapi: decode trend: %w", err)
	}

	points := make([]domain.TrendPoint, 0, len(apiPoints))
	for i := range apiPoints {
		points = append(points, apiPoints[i].toDomain())
	}
	return points, nil
}

// CreateStreamRequest is the admin payload for a new stream.
type CreateStreamRequest struct {
	Name          string `json:"name"`
	HamsterName   string `json:"hamster_name"`
	Description   string `json:"description,omitempty"`
	MuxPlaybackID string `json:"mux_playback_id,omitempty"`
	IsActive      bool   `json:"is_active"`
}

// CreateStream creates a stream.
// POST /api/streams
func (c *Client) CreateStream(ctx context.Context, req CreateStreamRequest) (domain.Stream, error) {
	body, err := c.doPost(ctx, "/api/streams", req)
	if err != nil {
		return domain.Stream{}, fmt.Errorf("marketapi: create stream: %w", err)
	}
	s, err := decodeObject[apiStream](body, "stream")
	if err != nil {
		return domain.Stream{}, fmt.Errorf("marketapi: decode stream: %w", err)
	}
	return s.toDomain(), nil
}

// DeleteStream removes a stream.
// DELETE /api/streams/:id
func (c *Client) DeleteStream(ctx context.Context, id string) error {
	if _, err := c.doDelete(ctx, "/api/streams/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("marketapi: delete stream %s: %w", id, err)
	}
	return nil
}
