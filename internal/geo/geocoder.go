// Package geo は地名文字列から座標を取得するジオコーディング機能を提供する。
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/time/rate"
)

// maxResponseSize はジオコーダーのレスポンスボディの読み取り上限。
const maxResponseSize = 1 << 20

// Point は経度・緯度の組を表す。
type Point struct {
	Longitude float64
	Latitude  float64
}

// Config はジオコーダーの設定。
type Config struct {
	// Endpoint はNominatim互換の検索APIエンドポイント。
	Endpoint string
	// Timeout は1リクエストあたりのタイムアウト。
	Timeout time.Duration
	// RequestsPerSecond は外部APIへのリクエストレート上限。
	// Nominatimの利用規約（1 req/sec）に合わせたデフォルトを使う。
	RequestsPerSecond float64

	// HTTPClient はテスト用にオーバーライド可能なHTTPクライアント。
	// 未指定の場合はSSRF防止機能付きのクライアントを使用する。
	HTTPClient *http.Client
}

// NominatimGeocoder はNominatim互換APIによるフォワードジオコーディングを提供する。
// 外部APIへのリクエストはレートリミッターで抑制する。
type NominatimGeocoder struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimGeocoder はNominatimGeocoderを生成する。
func NewNominatimGeocoder(config Config) *NominatimGeocoder {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 1
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// プライベートIPやメタデータIPへの到達をDialerレベルでブロックする。
		// DNS再バインディング攻撃にも対応している。
		safeConfig := safeurl.GetConfigBuilder().
			SetTimeout(config.Timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		httpClient = safeurl.Client(safeConfig).Client
	}

	return &NominatimGeocoder{
		endpoint:   config.Endpoint,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
	}
}

// nominatimResult はNominatim検索APIのレスポンス要素。
// 座標は文字列で返される。
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode は地名文字列から座標を取得する。
// 該当する場所が見つからない場合はnilを返す。
func (g *NominatimGeocoder) Geocode(ctx context.Context, location string) (*Point, error) {
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocoder rate limit wait canceled: %w", err)
	}

	reqURL, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geocoder endpoint: %w", err)
	}

	q := reqURL.Query()
	q.Set("q", location)
	q.Set("format", "json")
	q.Set("limit", "1")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", "Takibi/1.0 Campground Listings")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoder response: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to parse geocoder response: %w", err)
	}

	if len(results) == 0 {
		slog.Info("geocoder found no results", slog.String("location", location))
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude in geocoder response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude in geocoder response: %w", err)
	}

	return &Point{Longitude: lon, Latitude: lat}, nil
}
