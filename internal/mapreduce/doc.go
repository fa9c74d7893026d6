// Package mapreduce implements the function table and the sandboxed
// executor for user-supplied map/reduce plugins.
//
// # Why a subprocess
//
// The isolation contract is that a faulty plugin may crash, hang, or leak,
// and the server keeps running with its state intact. Go's plugin package
// (the closest stdlib mechanism to dlopen) loads into the *calling*
// process's address space and is explicitly documented by its authors as
// unsuitable for untrusted code — a panic in a plugin's init() or a bad
// type assertion on a looked-up symbol crashes whatever process called
// plugin.Open, which would be kvaultd itself.
//
// So this package never calls plugin.Open from the parent. Table.Register
// writes the uploaded bytes to <plugin-dir>/<name>.so and execs
// kvault-mr-child -validate <path>, which does the plugin.Open + symbol
// lookup and reports success or failure via exit code — a failure there
// can only crash that disposable child. Table.Invoke (via Executor.Run)
// execs kvault-mr-child -run <path> for every invocation; Go plugins have
// no unload primitive, so there is nothing to gain from holding a handle
// open across calls, and a fresh child per invocation keeps the crash
// isolation contract absolute.
package mapreduce
