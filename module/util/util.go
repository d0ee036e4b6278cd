package util

// WaitError waits for either an error on errChan or for done to be closed.
// If both are ready, the error takes precedence, so that an error thrown
// right before shutdown is never lost.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
		select {
		case err := <-errChan:
			return err
		default:
		}
		return nil
	}
}
