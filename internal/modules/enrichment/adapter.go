// README: Enrichment adapter; bounded, failure-absorbing calls to the vehicle analyzer.
package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quickfix/internal/logger"
	"quickfix/internal/metrics"
)

// DefaultTimeout bounds every analyzer call.
const DefaultTimeout = 20 * time.Second

// Analyzer is the external vehicle analysis capability.
type Analyzer interface {
	// AnalyzeImage returns the model's "Key: Value" description of the photo.
	AnalyzeImage(ctx context.Context, img Image) (string, error)
	// EstimateAge returns a short age phrase for a registration number.
	EstimateAge(ctx context.Context, vehicleNumber string) (string, error)
}

type Adapter struct {
	analyzer Analyzer
	cache    Cache
	timeout  time.Duration
	metrics  metrics.Recorder
	log      logger.Logger
}

type Option func(*Adapter)

func WithCache(c Cache) Option { return func(a *Adapter) { a.cache = c } }

func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMetrics(m metrics.Recorder) Option { return func(a *Adapter) { a.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(a *Adapter) { a.log = l } }

// NewAdapter wraps analyzer. A nil analyzer yields an adapter that only
// echoes the supplied registration number.
func NewAdapter(analyzer Analyzer, opts ...Option) *Adapter {
	a := &Adapter{
		analyzer: analyzer,
		timeout:  DefaultTimeout,
		metrics:  metrics.Nop{},
		log:      logger.Nop{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Enrich never fails: collaborator errors and timeouts leave the affected
// fields empty. A supplied registration number wins over one read from the
// image; the age comes from the image when it can be read there and from the
// registration number otherwise.
func (a *Adapter) Enrich(ctx context.Context, in Input) Result {
	number := known(in.VehicleNumber)
	if a.analyzer == nil {
		return Result{VehicleNumber: number}
	}
	// The request that triggered enrichment may go away; the lookup still
	// runs to its own deadline.
	ctx = context.WithoutCancel(ctx)

	var res Result
	if in.hasImage() {
		if text, err := a.call(ctx, "image", func(ctx context.Context) (string, error) {
			return a.analyzer.AnalyzeImage(ctx, *in.Image)
		}); err == nil {
			an := ParseVehicleAnalysis(text)
			res.VehicleType = known(an.VehicleType)
			res.EstimatedAge = known(an.GenerationYear)
			res.MakeModel = known(an.MakeModel)
			res.DamageDetection = known(an.DamageDetection)
			res.TireWear = known(an.TireWear)
			res.DamagedParts = known(an.DamagedParts)
			if number == "" {
				number = known(an.VehicleNumber)
			}
		}
	}
	res.VehicleNumber = number
	if res.EstimatedAge == "" && number != "" {
		res.EstimatedAge = a.estimateAge(ctx, number)
	}
	return res
}

func (a *Adapter) estimateAge(ctx context.Context, number string) string {
	key := strings.ToUpper(strings.ReplaceAll(number, " ", ""))
	if a.cache != nil {
		v, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.log.Warnf("age cache get %s: %v", key, err)
		} else if ok {
			a.metrics.EnrichmentCall("age", "cache_hit")
			return known(v)
		}
	}
	age, err := a.call(ctx, "age", func(ctx context.Context) (string, error) {
		return a.analyzer.EstimateAge(ctx, number)
	})
	if err != nil {
		return ""
	}
	age = strings.TrimSpace(age)
	if a.cache != nil {
		if err := a.cache.Set(ctx, key, age); err != nil {
			a.log.Warnf("age cache set %s: %v", key, err)
		}
	}
	return known(age)
}

type answer struct {
	text string
	err  error
}

// call runs fn under the adapter timeout and converts every failure,
// including panics and analyzers that ignore ctx, into ErrExternalService.
func (a *Adapter) call(ctx context.Context, path string, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		text, err := fn(ctx)
		done <- answer{text: text, err: err}
	}()

	var ans answer
	select {
	case <-ctx.Done():
		ans.err = ctx.Err()
	case ans = <-done:
	}
	if ans.err == nil && strings.TrimSpace(ans.text) == "" {
		ans.err = fmt.Errorf("empty answer")
	}
	if ans.err != nil {
		err := fmt.Errorf("%w: %s: %v", ErrExternalService, path, ans.err)
		a.metrics.EnrichmentCall(path, "error")
		a.log.Warnf("enrichment %v", err)
		return "", err
	}
	a.metrics.EnrichmentCall(path, "ok")
	return ans.text, nil
}
