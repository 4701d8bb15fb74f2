package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landed-cost/internal/model"
	"github.com/sells-group/landed-cost/pkg/geoip"
)

// Locator resolves the buyer's location. An explicit address bypasses the
// geolocation adapter entirely; otherwise the caller's IP is geolocated, and
// failure to do so aborts the pipeline because every downstream stage needs
// a destination country.
type Locator struct {
	geo     geoip.Client
	timeout time.Duration
}

// NewLocator creates the location stage.
func NewLocator(geo geoip.Client, timeout time.Duration) *Locator {
	return &Locator{geo: geo, timeout: timeout}
}

// Run resolves the location into c, or returns an abort error.
func (l *Locator) Run(ctx context.Context, in model.Input, c *model.Context) error {
	if in.Address != nil {
		c.Location = in.Address
		return nil
	}

	if in.ClientIP == "" {
		return eris.New("locate: no client address to geolocate")
	}

	loc, err := l.FromIP(ctx, in.ClientIP)
	if err != nil {
		return err
	}
	c.Location = loc
	return nil
}

// FromIP geolocates a single IP address.
func (l *Locator) FromIP(ctx context.Context, ip string) (*model.Location, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	res, err := l.geo.Lookup(ctx, ip)
	if err != nil {
		return nil, eris.Wrap(err, "locate: ip lookup")
	}

	return &model.Location{
		IP:          res.IP,
		City:        res.City,
		Region:      res.Region,
		Country:     res.Country,
		CountryCode: res.CountryCode,
		Lat:         res.Lat,
		Lon:         res.Lon,
		FullAddress: fmt.Sprintf("%s, %s, %s", res.City, res.Region, res.Country),
	}, nil
}
