package logic

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

type rateSetter interface {
	TargetUID() uint64
	SetMessageRate(messageID model.MessageID, rateHz float64) error
}

type logic struct {
	rates  map[model.MessageID]float64
	logger *zap.Logger
}

func NewLogicSvc(rates map[model.MessageID]float64) *logic {
	return &logic{
		rates:  rates,
		logger: zap.L(),
	}
}

// ConfigureStreams applies every configured stream rate to a freshly discovered
// device. Rates are applied in message id order and one failure does not stop
// the rest.
func (l *logic) ConfigureStreams(d rateSetter) error {
	ids := lo.Keys(l.rates)
	slices.SortFunc(ids, func(a, b model.MessageID) int {
		return cmp.Compare(a, b)
	})

	errs := lo.FilterMap(ids, func(id model.MessageID, _ int) (error, bool) {
		rate := l.rates[id]
		if err := d.SetMessageRate(id, rate); err != nil {
			l.logger.Warn("failed to set message rate",
				zap.Uint64("uid", d.TargetUID()),
				zap.Stringer("message", id),
				zap.Float64("rate_hz", rate),
				zap.Error(err))
			return fmt.Errorf("set %s rate: %w", id, err), true
		}
		return nil, false
	})
	if len(errs) == 0 && len(ids) > 0 {
		l.logger.Info("configured streams", zap.Uint64("uid", d.TargetUID()), zap.Int("streams", len(ids)))
	}
	return errors.Join(errs...)
}
