// Package scenario runs YAML tick scripts against a message queue and checks
// what readers observe.
//
//	name: overflow
//	readers:
//	  - name: slow
//	ticks:
//	  - steps:
//	      - send: [m0, m1, m2, m3, m4]
//	  - steps: []
//	  - steps:
//	      - read: slow
//	        expect: []
//	        expect_missed: 5
//
// Every tick ends with a rotation. Steps are attach, send, read, clear and
// probe; reads and probes may carry expectations. Readers marked gate are
// validated before reading and report a skip instead of reading when nothing
// is pending.
package scenario
