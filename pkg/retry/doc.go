// Package retry runs operations again after transient failures.
//
// Do calls an operation, and while it fails with an error accepted by
// Config.RetryIf it waits Backoff.NextDelay and tries again, up to
// Config.MaxRetries additional attempts:
//
//	attempts, err := retry.Do(func() error {
//		data, err = client.DownloadCard(ctx, link)
//		return err
//	}, &retry.Config{
//		MaxRetries: 3,
//		Backoff:    retry.NewUniformJitter(time.Second, 6*time.Second),
//		RetryIf:    errs.IsTransient,
//		Context:    ctx,
//	})
//
// Errors that RetryIf rejects are returned immediately. When the retries are
// used up the returned error wraps both ErrExhausted and the last failure.
// Delays honour Config.Context, so a cancelled run stops waiting at once.
package retry
