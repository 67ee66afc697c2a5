package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/cache"
)

// AnalyticsSource is the slice of the Google client the dashboard routes use.
type AnalyticsSource interface {
	RunGA4Report(ctx context.Context, body any) (json.RawMessage, error)
	QuerySearchAnalytics(ctx context.Context, body any) (json.RawMessage, error)
	SearchAds(ctx context.Context, gaql string) (json.RawMessage, error)
}

// CRMSource summarizes contacts and opportunities for one location.
type CRMSource interface {
	ContactsSummary(ctx context.Context, limit int) (json.RawMessage, error)
	OpportunitiesSummary(ctx context.Context, limit int) (json.RawMessage, error)
}

// Narrator turns an aggregated metrics payload into narrative text.
type Narrator interface {
	Summarize(ctx context.Context, metrics json.RawMessage) (string, error)
}

// Store caches upstream responses; cache.ErrMiss means fetch fresh.
type Store interface {
	Get(key string) (json.RawMessage, error)
	Set(key string, payload json.RawMessage) error
}

// Dashboard serves the read-side analytics routes: cache-first proxies over
// the external marketing and CRM APIs. Any nil source disables its routes
// with a 503 instead of panicking at mount time.
type Dashboard struct {
	Analytics AnalyticsSource
	CRM       CRMSource
	Narrator  Narrator
	Cache     Store
}

func (d *Dashboard) mount(g *gin.RouterGroup) {
	g.GET("/analytics/overview", d.handleAnalyticsOverview)
	g.GET("/search/performance", d.handleSearchPerformance)
	g.GET("/ads/performance", d.handleAdsPerformance)
	g.GET("/crm/summary", d.handleCRMSummary)
	g.POST("/insights", d.handleInsights)
}

func (d *Dashboard) handleAnalyticsOverview(c *gin.Context) {
	if d.Analytics == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "analytics upstream not configured"})
		return
	}
	days := dayRange(c, 7)
	d.serveCached(c, fmt.Sprintf("ga4:overview:%dd", days), func(ctx context.Context) (json.RawMessage, error) {
		body := gin.H{
			"dateRanges": []gin.H{{"startDate": fmt.Sprintf("%ddaysAgo", days), "endDate": "today"}},
			"metrics": []gin.H{
				{"name": "sessions"}, {"name": "totalUsers"}, {"name": "conversions"},
			},
			"dimensions": []gin.H{{"name": "date"}},
		}
		return d.Analytics.RunGA4Report(ctx, body)
	})
}

func (d *Dashboard) handleSearchPerformance(c *gin.Context) {
	if d.Analytics == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "analytics upstream not configured"})
		return
	}
	days := dayRange(c, 28)
	d.serveCached(c, fmt.Sprintf("gsc:performance:%dd", days), func(ctx context.Context) (json.RawMessage, error) {
		end := time.Now()
		start := end.AddDate(0, 0, -days)
		body := gin.H{
			"startDate":  start.Format("2006-01-02"),
			"endDate":    end.Format("2006-01-02"),
			"dimensions": []string{"query"},
			"rowLimit":   50,
		}
		return d.Analytics.QuerySearchAnalytics(ctx, body)
	})
}

func (d *Dashboard) handleAdsPerformance(c *gin.Context) {
	if d.Analytics == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "analytics upstream not configured"})
		return
	}
	days := dayRange(c, 30)
	d.serveCached(c, fmt.Sprintf("ads:performance:%dd", days), func(ctx context.Context) (json.RawMessage, error) {
		gaql := fmt.Sprintf(
			"SELECT campaign.name, metrics.impressions, metrics.clicks, metrics.cost_micros, metrics.conversions "+
				"FROM campaign WHERE segments.date DURING %s ORDER BY metrics.cost_micros DESC",
			adsDateRange(days))
		return d.Analytics.SearchAds(ctx, gaql)
	})
}

func (d *Dashboard) handleCRMSummary(c *gin.Context) {
	if d.CRM == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "crm upstream not configured"})
		return
	}
	d.serveCached(c, "crm:summary", func(ctx context.Context) (json.RawMessage, error) {
		contacts, err := d.CRM.ContactsSummary(ctx, 100)
		if err != nil {
			return nil, err
		}
		opps, err := d.CRM.OpportunitiesSummary(ctx, 100)
		if err != nil {
			return nil, err
		}
		return json.Marshal(gin.H{"contacts": contacts, "opportunities": opps})
	})
}

func (d *Dashboard) handleInsights(c *gin.Context) {
	if d.Narrator == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "insights upstream not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil || len(body) == 0 || !json.Valid(body) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "metrics JSON body required"})
		return
	}
	text, err := d.Narrator.Summarize(c.Request.Context(), body)
	if err != nil {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"insights": text})
}

// serveCached answers from the cache when fresh, otherwise fetches, stores
// best-effort and replies. Upstream failures map to 502.
func (d *Dashboard) serveCached(c *gin.Context, key string, fetch func(context.Context) (json.RawMessage, error)) {
	if d.Cache != nil {
		hit, err := d.Cache.Get(key)
		if err == nil {
			c.Header("X-Cache", "hit")
			c.Data(http.StatusOK, "application/json", hit)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Debug("cache read failed", "key", key, "error", err)
		}
	}
	payload, err := fetch(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	if d.Cache != nil {
		_ = d.Cache.Set(key, payload)
	}
	c.Header("X-Cache", "miss")
	c.Data(http.StatusOK, "application/json", payload)
}

func dayRange(c *gin.Context, def int) int {
	if v := c.Query("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			return n
		}
	}
	return def
}

func adsDateRange(days int) string {
	switch {
	case days <= 7:
		return "LAST_7_DAYS"
	case days <= 14:
		return "LAST_14_DAYS"
	default:
		return "LAST_30_DAYS"
	}
}
