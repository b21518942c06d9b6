package common

import (
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Except records an error that occurred during the run without aborting it.
// tags are key value pairs attached to the log entry and the error report.
func (r *Run) Except(err error, tags ...string) {
	if err == nil {
		return
	}

	atomic.AddInt64(&r.errors, 1)

	fields := []zap.Field{zap.Error(err)}
	for i := 0; i+1 < len(tags); i += 2 {
		fields = append(fields, zap.String(tags[i], tags[i+1]))
	}

	if ignoreError(err) {
		r.Logger().Warn("ignored error occurred while executing run", fields...)
		return
	}

	r.Logger().Error("error occurred while executing run", fields...)

	if raven.DefaultClient != nil {
		ravenTags := map[string]string{
			"job":    r.Job,
			"run_id": r.ID.String(),
			"launch": r.Launch.String(),
		}
		for i := 0; i+1 < len(tags); i += 2 {
			ravenTags[tags[i]] = tags[i+1]
		}

		raven.CaptureError(err, ravenTags)
	}
}

func ignoreError(err error) bool {
	if err == nil {
		return true
	}

	// discord permission errors
	if errD, ok := errors.Cause(err).(*discordgo.RESTError); ok && errD != nil && errD.Message != nil {
		if errD.Message.Code == discordgo.ErrCodeMissingPermissions ||
			errD.Message.Code == discordgo.ErrCodeMissingAccess ||
			errD.Message.Code == discordgo.ErrCodeUnknownChannel {
			return true
		}
	}

	return false
}
