package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// awcMETAR is one element of the aviationweather.gov JSON response.
type awcMETAR struct {
	ICAOID     string `json:"icaoId"`
	RawOb      string `json:"rawOb"`
	FltCat     string `json:"fltCat"`
	ReportTime string `json:"reportTime"`
	ObsTime    int64  `json:"obsTime"`
}

var reportTimeLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	time.DateTime,
}

func (m awcMETAR) observedAt() time.Time {
	if m.ObsTime > 0 {
		return time.Unix(m.ObsTime, 0).UTC()
	}
	for _, layout := range reportTimeLayouts {
		if t, err := time.Parse(layout, m.ReportTime); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// FetchMETAR retrieves the latest observation for one station. FetchedAt
// is left zero; the weather cache stamps it with its own clock.
func (c *Client) FetchMETAR(ctx context.Context, stationID string) (*model.WeatherObservation, error) {
	id := model.NormalizeICAO(stationID)
	if err := model.ValidateStationID(id); err != nil {
		return nil, err
	}

	body, _, err := c.open(ctx, fmt.Sprintf(c.metarURL, url.QueryEscape(id)))
	if err != nil {
		return nil, classify("fetcher: metar "+id, err)
	}
	defer body.Close() //nolint:errcheck

	items, errs := DecodeJSONArray[awcMETAR](ctx, body)
	var found *awcMETAR
	for item := range items {
		if found == nil && (item.ICAOID == "" || strings.EqualFold(item.ICAOID, id)) {
			found = &item
		}
	}
	if err := <-errs; err != nil {
		return nil, efberr.Wrap(efberr.FetchFailed, "fetcher: decode metar "+id, err)
	}
	if found == nil {
		return nil, efberr.New(efberr.NotFound, "fetcher: metar", "no observation for "+id)
	}

	obs := &model.WeatherObservation{
		StationID:  id,
		ObservedAt: found.observedAt(),
	}
	if raw := strings.TrimSpace(found.RawOb); raw != "" {
		obs.RawMETAR = &raw
	}
	cat, err := model.ParseFlightCategory(found.FltCat)
	if err != nil {
		// Older stations omit fltCat; derive it from the report itself.
		if cat, err = model.CategoryFromMETAR(found.RawOb); err != nil {
			return nil, efberr.Wrap(efberr.FetchFailed, "fetcher: metar "+id, err)
		}
	}
	obs.FlightCategory = cat
	return obs, nil
}
