package handlers

import "github.com/judgenot0/watchdog/structs"

// Classify maps a verdict onto the result code the control server stores.
// Precedence mirrors how kills are attributed: a memory kill outranks a
// time kill, both outrank a plain bad exit.
func Classify(v *structs.Verdict) string {
	switch {
	case v.MLE:
		return "mle"
	case v.TLE:
		return "tle"
	case v.ExitCode != 0:
		return "re"
	}
	return "ok"
}
