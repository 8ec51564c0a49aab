package simulate

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/reconsider"
	"github.com/okian/nilcore/internal/domain/types"
	"github.com/okian/nilcore/pkg/logger"
)

const (
	defaultDailyLimit = 3
	extraManual       = 2
	maxResponses      = 10
	leaderboardSize   = 100
)

// ErrUnhealthy is returned when the target does not pass its health check.
var ErrUnhealthy = eris.New("target service is not healthy")

// Runner executes one simulation.
type Runner struct {
	cfg    Config
	client *HTTPClient
	gen    *Generator
	log    logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg Config, log logger.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Contend <= 1 {
		cfg.Contend = 2
	}
	if log == nil {
		log = logger.Get().Named("simulate")
	}
	r := &Runner{cfg: cfg, gen: NewGenerator(cfg.Seed), log: log}
	r.client = newHTTPClient(cfg, func() { r.tally(func(s *Stats) { s.Throttled++ }) })
	return r
}

// Run executes the complete simulation and returns its statistics. An error
// means the run could not proceed; invariant violations are reported in Stats.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	return NewRunner(cfg, nil).Run(ctx)
}

// Run executes the phases in order: health, first computations, concurrent
// manual recalculations, visibility and leaderboard, deal scoring, and
// contended reconsiderations.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	r.stats = Stats{StartTime: time.Now()}
	r.log.Info(ctx, "starting simulation",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("athletes", r.cfg.Athletes),
		logger.Int("deals", r.cfg.Deals),
		logger.Int("workers", r.cfg.Workers),
	)

	if err := r.checkHealth(ctx); err != nil {
		return nil, err
	}
	limit := r.dailyLimit(ctx)

	athletes := make([]fmv.Signals, r.cfg.Athletes)
	for i := range athletes {
		athletes[i] = r.gen.Signals()
	}
	deals := make([]dealInput, r.cfg.Deals)
	for i := range deals {
		if len(athletes) == 0 {
			break
		}
		d, a := r.gen.Deal(athletes[i%len(athletes)].AthleteID)
		deals[i] = dealInput{Deal: d, Athlete: a}
	}

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"initial", func(ctx context.Context) error { return r.initial(ctx, athletes) }},
		{"daily-limit", func(ctx context.Context) error { return r.manual(ctx, athletes, limit) }},
		{"leaderboard", func(ctx context.Context) error { return r.leaderboard(ctx, athletes) }},
		{"compliance", func(ctx context.Context) error { return r.score(ctx, deals) }},
		{"reconsider", func(ctx context.Context) error { return r.reconsider(ctx, athletes) }},
	}
	for _, p := range phases {
		started := time.Now()
		if err := p.run(ctx); err != nil {
			return nil, eris.Wrapf(err, "phase %s", p.name)
		}
		r.log.Info(ctx, "phase completed", logger.String("phase", p.name), logger.Duration("took", time.Since(started)))
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.logSummary(ctx)
	out := r.stats
	return &out, nil
}

type dealInput struct {
	Deal    compliance.Deal           `json:"deal"`
	Athlete compliance.AthleteContext `json:"athlete"`
}

func (r *Runner) tally(f func(*Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

func (r *Runner) violate(ctx context.Context, vs []string) {
	if len(vs) == 0 {
		return
	}
	r.tally(func(s *Stats) { s.Violations = append(s.Violations, vs...) })
	if r.cfg.Verbose {
		for _, v := range vs {
			r.log.Warn(ctx, "invariant violated", logger.String("violation", v))
		}
	}
}

func (r *Runner) fail(ctx context.Context, what string, res response, err error) {
	r.tally(func(s *Stats) { s.Failed++ })
	fields := []logger.Field{logger.String("request", what)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	} else {
		fields = append(fields, logger.Int("status", res.Status), logger.String("code", res.apiError().Code))
	}
	r.log.Warn(ctx, "request failed", fields...)
}

func (r *Runner) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	return g, gctx
}

func (r *Runner) checkHealth(ctx context.Context) error {
	res, err := r.client.Get(ctx, "/healthz")
	if err != nil {
		return eris.Wrap(err, "health check")
	}
	if res.Status != http.StatusOK {
		return eris.Wrapf(ErrUnhealthy, "status %d", res.Status)
	}
	return nil
}

// dailyLimit asks the server for its recalculation allowance.
func (r *Runner) dailyLimit(ctx context.Context) int {
	res, err := r.client.Get(ctx, "/stats")
	if err != nil || res.Status != http.StatusOK {
		return defaultDailyLimit
	}
	var stats map[string]any
	if res.decode(&stats) != nil {
		return defaultDailyLimit
	}
	if n, ok := stats["dailyLimit"].(float64); ok && n > 0 {
		return int(n)
	}
	return defaultDailyLimit
}

func (r *Runner) initial(ctx context.Context, athletes []fmv.Signals) error {
	g, gctx := r.group(ctx)
	for _, s := range athletes {
		g.Go(func() error {
			res, err := r.client.Post(gctx, "/v1/fmv/calculate", s)
			if err != nil || res.Status != http.StatusOK {
				r.fail(gctx, "calculate "+s.AthleteID, res, err)
				return gctx.Err()
			}
			var rec fmv.Result
			if err := res.decode(&rec); err != nil {
				r.fail(gctx, "calculate "+s.AthleteID, res, err)
				return nil
			}
			r.tally(func(st *Stats) { st.Calculations++ })
			r.violate(gctx, append(checkFMV(rec), checkInitial(rec)...))
			return nil
		})
	}
	return g.Wait()
}

// manual fires limit+extraManual recalculations per athlete at once.
func (r *Runner) manual(ctx context.Context, athletes []fmv.Signals, limit int) error {
	attempts := limit + extraManual
	g, gctx := r.group(ctx)
	for _, s := range athletes {
		g.Go(func() error {
			var (
				wg                sync.WaitGroup
				mu                sync.Mutex
				admitted, refused int
			)
			for range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := r.client.Post(gctx, "/v1/fmv/calculate", s)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err != nil:
						r.fail(gctx, "recalculate "+s.AthleteID, res, err)
					case res.Status == http.StatusOK:
						admitted++
					case res.Status == http.StatusTooManyRequests && res.apiError().Code == "RATE_LIMIT_EXCEEDED":
						refused++
					default:
						r.fail(gctx, "recalculate "+s.AthleteID, res, nil)
					}
				}()
			}
			wg.Wait()
			r.tally(func(st *Stats) {
				st.Calculations += admitted
				st.RateLimited += refused
			})
			r.violate(gctx, checkDailyLimit(s.AthleteID, admitted, refused, attempts, limit))
			return gctx.Err()
		})
	}
	return g.Wait()
}

// leaderboard publishes every other athlete and checks the public listing.
func (r *Runner) leaderboard(ctx context.Context, athletes []fmv.Signals) error {
	hidden := make(map[string]bool, len(athletes))
	g, gctx := r.group(ctx)
	for i, s := range athletes {
		public := i%2 == 0
		if !public {
			hidden[s.AthleteID] = true
			continue
		}
		g.Go(func() error {
			res, err := r.client.Put(gctx, "/v1/fmv/"+s.AthleteID+"/visibility", map[string]bool{"isPublic": true})
			if err != nil || res.Status != http.StatusOK {
				r.fail(gctx, "publish "+s.AthleteID, res, err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	res, err := r.client.Get(ctx, "/v1/fmv/leaderboard?limit="+strconv.Itoa(leaderboardSize))
	if err != nil || res.Status != http.StatusOK {
		r.fail(ctx, "leaderboard", res, err)
		return ctx.Err()
	}
	var board struct {
		Entries []types.Entry `json:"entries"`
	}
	if err := res.decode(&board); err != nil {
		r.fail(ctx, "leaderboard", res, err)
		return nil
	}
	vs := checkLeaderboard(board.Entries, hidden)
	r.violate(ctx, vs)
	r.tally(func(s *Stats) { s.LeaderboardOK = len(vs) == 0 })
	return nil
}

func (r *Runner) score(ctx context.Context, deals []dealInput) error {
	g, gctx := r.group(ctx)
	for i, in := range deals {
		g.Go(func() error {
			res, err := r.client.Post(gctx, "/v1/compliance/score", in)
			if err != nil || res.Status != http.StatusCreated {
				r.fail(gctx, "score "+in.Deal.ID, res, err)
				return gctx.Err()
			}
			var out compliance.Result
			if err := res.decode(&out); err != nil {
				r.fail(gctx, "score "+in.Deal.ID, res, err)
				return nil
			}
			r.tally(func(s *Stats) {
				s.DealsScored++
				if out.RiskTier == compliance.TierRed {
					s.RedDeals++
				}
			})
			r.violate(gctx, checkCompliance(out))

			// Results are immutable: the first deal is resubmitted to prove it.
			if i == 0 {
				again, err := r.client.Post(gctx, "/v1/compliance/score", in)
				if err != nil {
					r.fail(gctx, "rescore "+in.Deal.ID, again, err)
				} else if again.Status != http.StatusConflict {
					r.violate(gctx, []string{"deal " + in.Deal.ID + ": rescoring answered " + strconv.Itoa(again.Status) + ", want 409"})
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// reconsider declines invites and races concurrent reconsiderations on each.
func (r *Runner) reconsider(ctx context.Context, athletes []fmv.Signals) error {
	n := min(len(athletes), maxResponses)
	g, gctx := r.group(ctx)
	for _, s := range athletes[:n] {
		g.Go(func() error {
			created, err := r.client.Post(gctx, "/v1/responses", map[string]string{
				"kind": string(reconsider.KindDealInvite), "athleteId": s.AthleteID, "subjectId": "deal-" + s.AthleteID,
			})
			if err != nil || created.Status != http.StatusCreated {
				r.fail(gctx, "create response", created, err)
				return gctx.Err()
			}
			var rec reconsider.Record
			if err := created.decode(&rec); err != nil {
				r.fail(gctx, "create response", created, err)
				return nil
			}
			r.tally(func(st *Stats) { st.Responses++ })

			declined, err := r.client.Post(gctx, "/v1/responses/"+rec.ID+"/respond",
				map[string]string{"action": string(reconsider.ActionDecline)})
			if err != nil || declined.Status != http.StatusOK {
				r.fail(gctx, "decline "+rec.ID, declined, err)
				return gctx.Err()
			}

			var (
				wg             sync.WaitGroup
				mu             sync.Mutex
				won, conflicts int
			)
			for range r.cfg.Contend {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := r.client.Post(gctx, "/v1/responses/"+rec.ID+"/reconsider", nil)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err != nil:
						r.fail(gctx, "reconsider "+rec.ID, res, err)
					case res.Status == http.StatusOK:
						won++
					case res.Status == http.StatusConflict:
						conflicts++
					default:
						r.fail(gctx, "reconsider "+rec.ID, res, nil)
					}
				}()
			}
			wg.Wait()
			r.tally(func(st *Stats) {
				st.Reconsidered += won
				st.Conflicts += conflicts
			})
			r.violate(gctx, checkReconsider(rec.ID, won, conflicts, r.cfg.Contend))
			return gctx.Err()
		})
	}
	return g.Wait()
}

func (r *Runner) logSummary(ctx context.Context) {
	s := r.stats
	r.log.Info(ctx, "simulation finished",
		logger.Int("calculations", s.Calculations),
		logger.Int("rateLimited", s.RateLimited),
		logger.Int("dealsScored", s.DealsScored),
		logger.Int("redDeals", s.RedDeals),
		logger.Int("responses", s.Responses),
		logger.Int("reconsidered", s.Reconsidered),
		logger.Int("conflicts", s.Conflicts),
		logger.Int("throttled", s.Throttled),
		logger.Int("failed", s.Failed),
		logger.Int("violations", len(s.Violations)),
		logger.Bool("leaderboardOK", s.LeaderboardOK),
		logger.Duration("duration", s.Duration),
	)
}
