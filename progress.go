package wgtrain

// ProgressFunc is called after each epoch with the 1-based epoch number and
// the total. Returning an error stops training.
type ProgressFunc func(epoch, total int) error

// Progress is one update delivered through ProgressChannel.
type Progress struct {
	Epoch int `json:"epoch"`
	Total int `json:"total"`
}

// Done reports whether this is the final update of a run.
func (p Progress) Done() bool { return p.Epoch >= p.Total }

// ProgressChannel adapts ch into a ProgressFunc. Updates are dropped while ch
// is full so a slow reader never stalls training.
func ProgressChannel(ch chan<- Progress) ProgressFunc {
	return func(epoch, total int) error {
		select {
		case ch <- Progress{Epoch: epoch, Total: total}:
		default:
		}
		return nil
	}
}

// Chain calls each non-nil fn in order and stops at the first error.
func Chain(fns ...ProgressFunc) ProgressFunc {
	return func(epoch, total int) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(epoch, total); err != nil {
				return err
			}
		}
		return nil
	}
}
