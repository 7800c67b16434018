package pairing

import "time"

func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (r *Registry) SetGenerator(gen func() string) { r.generate = gen }
