//go:build linux
// +build linux

package affinity

/*
#define _GNU_SOURCE
#include <sched.h>
#include <pthread.h>
#include <errno.h>

static int aioloop_setaffinity(int cpu) {
	cpu_set_t set;
	CPU_ZERO(&set);
	CPU_SET(cpu, &set);
	return pthread_setaffinity_np(pthread_self(), sizeof(set), &set);
}
*/
import "C"

import "github.com/momentics/aioloop/errs"

// pinPlatform pins the calling thread to cpuID via pthread_setaffinity_np.
func pinPlatform(cpuID int) errs.Kind {
	if C.aioloop_setaffinity(C.int(cpuID)) != 0 {
		return errs.EIO
	}
	return errs.OK
}
