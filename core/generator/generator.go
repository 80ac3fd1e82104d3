package generator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/protocol"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
)

// Generator synthesizes relation frames and writes them to a link, one
// whole frame per write.
type Generator struct {
	log    *mlog.Logger
	opt    Option
	rand   *rand.Rand
	header protocol.RelationHeader
	link   device.Writer
}

// NewEntityPool samples size distinct ids from [0, idRange).
func NewEntityPool(r *rand.Rand, size, idRange int) ([]int32, error) {
	if size <= 0 || idRange <= 0 || size > idRange {
		return nil, errors.Errorf("cannot sample %d distinct ids from [0,%d)", size, idRange)
	}
	if int64(idRange)-1 > math.MaxInt32 {
		return nil, errors.Errorf("id range %d exceeds the entry id field", idRange)
	}

	// Floyd's algorithm: memory grows with size, not idRange
	seen := make(map[int]struct{}, size)
	pool := make([]int32, 0, size)
	for j := idRange - size; j < idRange; j++ {
		id := r.Intn(j + 1)
		if _, ok := seen[id]; ok {
			id = j
		}
		seen[id] = struct{}{}
		pool = append(pool, int32(id))
	}
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool, nil
}

func New(opt *Option, link device.Writer) (*Generator, error) {
	header := protocol.RelationHeader{RelationID: opt.RelationID, Aggregate: opt.Aggregate}
	// a frame that cannot be encoded must never reach the link
	if _, err := header.Encode(); err != nil {
		return nil, err
	}
	if len(opt.Pool) == 0 {
		return nil, errors.New("empty entity pool")
	}

	r := opt.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Generator{
		log:    mlog.New("generator"),
		opt:    *opt,
		rand:   r,
		header: header,
		link:   link,
	}, nil
}

// Run sends the random burst, waits for the interval and then sends one
// frame per pool id. Cancelling ctx aborts the whole run.
func (g *Generator) Run(ctx context.Context) error {
	if err := g.GenerateBurst(ctx, g.opt.Count); err != nil {
		return err
	}

	g.log.Debugf("waiting %s before the targeted burst", g.opt.Interval)
	timer := time.NewTimer(g.opt.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	return g.GenerateTargeted(ctx, g.opt.Pool)
}

// GenerateBurst sends count frames with entity ids drawn uniformly from the pool.
func (g *Generator) GenerateBurst(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := g.opt.Pool[g.rand.Intn(len(g.opt.Pool))]
		if err := g.send(id); err != nil {
			return errors.Wrapf(err, "random burst frame %d", i)
		}
	}
	return nil
}

// GenerateTargeted sends exactly one frame per id, in order.
func (g *Generator) GenerateTargeted(ctx context.Context, ids []int32) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.send(id); err != nil {
			return errors.Wrapf(err, "targeted frame for entity %d", id)
		}
	}
	return nil
}

func (g *Generator) send(id int32) error {
	entry := protocol.EntryRecord{
		EntryID:    id,
		SecondAttr: g.rand.Int31n(MaxAttr + 1),
		ThirdAttr:  g.rand.Int31n(MaxAttr + 1),
	}
	frame, err := protocol.EncodeFrame(g.opt.Endpoints, &g.header, &entry, g.opt.Payload)
	if err != nil {
		return err
	}

	if _, err := g.link.Write(frame); err != nil {
		return errors.Wrapf(err, "write %s", g.link.Name())
	}
	g.opt.Metrics.Sent()
	g.log.Infow("sent frame",
		"link", g.link.Name(),
		"dst", g.opt.Endpoints.Dst,
		"relation", g.header,
		"entry", entry,
		"bytes", len(frame),
	)
	return nil
}
