package scheduler

import "fmt"

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("scheduler: callback panicked: %w", err)
	}
	return fmt.Errorf("scheduler: callback panicked: %v", r)
}
