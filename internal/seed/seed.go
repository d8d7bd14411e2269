// Package seed derives a deterministic fingerprint from a world state.
// Two states describing the same real-world situation (same rounded
// location, same 5-minute window, same quantized signal values) hash to
// the same digest, which downstream renderers use as a PRNG source.
package seed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/resonantmigration/worldstate-service/internal/models"
)

// timeBucket is the width of the determinism window.
const timeBucket = 5 * 60 * 1000 // milliseconds

// projection is the canonical quantized subset of a world state that feeds
// the digest. Field order is fixed by the struct, so json.Marshal output is
// canonical.
type projection struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Temp       int     `json:"temp"`
	Wind       int     `json:"wind"`
	Kp         int     `json:"kp"`
	Vol        int     `json:"vol"`
	Tone       int     `json:"tone"`
	Mag        int     `json:"mag"`
	TimeWindow int64   `json:"timeWindow"`
}

// FromWorldState computes the hex SHA-256 seed for ws. The seed ignores
// everything volatile: coordinates are rounded to 2 decimals, temperature
// and wind to whole units, kp and magnitude are scaled x10 and rounded,
// and the generation time is floored to a 5-minute bucket.
func FromWorldState(ws models.WorldState) string {
	p := projection{
		Lat:        round2(ws.Location.Lat),
		Lng:        round2(ws.Location.Lng),
		Temp:       int(math.Round(ws.Clima.Temp)),
		Wind:       int(math.Round(ws.Clima.Wind)),
		Kp:         int(math.Round(ws.Cosmos.KpIndex * 10)),
		Vol:        int(math.Round(ws.Economia.VolatilityIndex)),
		Tone:       int(math.Round(ws.Eventos.ToneScore)),
		Mag:        int(math.Round(ws.Tierra.NearestMagnitude * 10)),
		TimeWindow: ws.GeneratedAt.UnixMilli() / timeBucket,
	}
	payload, _ := json.Marshal(p)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
