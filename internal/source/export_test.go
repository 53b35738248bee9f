package source

import (
	"context"
	"time"
)

func SetSleep(r *Reconnecting, fn func(context.Context, time.Duration) error) { r.sleep = fn }
