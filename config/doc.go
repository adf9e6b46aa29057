// Package config holds the driver's tunable settings.
//
// Settings are read from environment variables named after the property:
// the property "aeron.term.buffer.length" is read from the environment
// variable AERON_TERM_BUFFER_LENGTH, and an unset variable leaves the
// default in place. Size values accept k, m and g suffixes
// (powers of 1024) and duration values accept ns, us, ms and s suffixes.
//
// A Context carries every concluded setting. Construct one with NewContext,
// override fields, then call Conclude to validate and derive dependent
// values before handing it to the driver:
//
//	ctx := config.NewContext()
//	ctx.AeronDir = "/dev/shm/aeron-alice"
//	ctx.TermBufferLength = 16 * 1024 * 1024
//	if err := ctx.Conclude(); err != nil {
//		log.Fatal(err)
//	}
package config
