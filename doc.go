// Package execenv decides what environment a child process should get when
// it is spawned from inside a relocated application bundle.
//
// A bundle (an AppImage-style directory announced by the APPDIR variable)
// runs its programs with loader variables such as LD_LIBRARY_PATH and
// LD_PRELOAD pointing into itself. Programs outside the bundle must not
// inherit them. execenv classifies each target as Internal or External and
// builds the environment for External targets, either by stripping the
// bundle's variables or by recovering the initial environment of the
// nearest ancestor process that was started outside the bundle.
//
// Basic usage:
//
//	eng, err := execenv.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cmd := exec.Command("xdg-open", "https://example.com")
//	if _, err := eng.Wrap(cmd); err != nil {
//	    log.Printf("running with the current environment: %v", err)
//	}
//	err = cmd.Run()
//
// Hook layers that intercept process creation themselves use Classify or
// ClassifyInvocation followed by BuildEnvironment.
package execenv
