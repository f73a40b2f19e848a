package cachecore

import "fmt"

func errEntryf(format string, args ...any) error {
	return fmt.Errorf("cachecore: "+format, args...)
}
