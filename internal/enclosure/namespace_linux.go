//go:build linux

package enclosure

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"
)

// reexecName is the command name registered with reexec for the namespace
// entry point. main() must call reexec.Init() before anything else for
// this to take effect; see cmd/boxxy/main.go.
const reexecName = "boxxy-enclosure"

func init() {
	reexec.Register(reexecName, enclosureMain)
}

// ruleSpec is the JSON-serializable subset of MatchedRule passed across the
// re-exec boundary: the parent process (which built the RuleSet in Go
// memory) cannot hand a live Go value to the freshly cloned child, so the
// request is marshaled to a temp file and the child reads it back.
type ruleSpec struct {
	Name    string            `json:"name"`
	Target  string            `json:"target"`
	Rewrite string            `json:"rewrite"`
	Mode    RuleMode          `json:"mode"`
	Env     map[string]string `json:"env"`
}

type enterRequest struct {
	StagingPath string     `json:"staging_path"`
	Immutable   bool       `json:"immutable"`
	Rules       []ruleSpec `json:"rules"`
	Program     string     `json:"program"`
	Argv        []string   `json:"argv"`
	Env         []string   `json:"env"`
	WorkingDir  string     `json:"working_dir"`
	LogLevel    string     `json:"log_level"`
}

// Enter builds the os/exec.Cmd that re-execs the current binary into the
// registered enclosureMain entry point with CLONE_NEWUSER|CLONE_NEWNS and
// an identity UID/GID mapping for uid/gid. The returned Cmd has not been
// started; the caller wires stdio and calls Run().
//
// The identity mapping (container uid == host uid) together with
// GidMappingsEnableSetgroups: false reproduces, atomically and in the
// kernel-mandated order, what the manual procedure would do by writing
// "deny" to /proc/self/setgroups before /proc/self/gid_map: the Go runtime
// performs both from the thread that calls clone(2), before this process's
// own code ever runs, which a multi-threaded Go program could not safely
// replicate by writing to /proc/self/* itself after the fact.
func Enter(stagingPath string, rules []MatchedRule, immutable bool, program string, argv, env []string, workingDir, logLevel string) (*exec.Cmd, error) {
	req := enterRequest{
		StagingPath: stagingPath,
		Immutable:   immutable,
		Program:     program,
		Argv:        argv,
		Env:         env,
		WorkingDir:  workingDir,
		LogLevel:    logLevel,
	}
	for _, r := range rules {
		req.Rules = append(req.Rules, ruleSpec{
			Name: r.Name, Target: r.Target, Rewrite: r.Rewrite, Mode: r.normalizedMode(), Env: r.Env,
		})
	}

	reqFile, err := writeRequest(req)
	if err != nil {
		return nil, &NamespaceError{Step: "marshal enter request", Err: err}
	}

	uid := os.Getuid()
	gid := os.Getgid()

	cmd := reexec.Command(reexecName, reqFile)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER | syscall.CLONE_NEWNS,
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: uid, HostID: uid, Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: gid, HostID: gid, Size: 1},
		},
		GidMappingsEnableSetgroups: false,
	}
	return cmd, nil
}

func writeRequest(req enterRequest) (string, error) {
	f, err := os.CreateTemp("", "boxxy-enter-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(req); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// enclosureMain is the reexec entry point. It runs already inside the new
// user and mount namespaces (the kernel applies Cloneflags/UidMappings at
// clone(2) time, before any of this code executes), reads its instructions
// from the file named in os.Args[1], builds the mirror root, pivots into it,
// installs the rule bind mounts, and finally execve's the target
// program, which replaces this process image entirely. Only error paths
// return control to os.Exit below; the success path never returns.
func enclosureMain() {
	defer os.Remove(os.Args[1])

	logger := slog.Default()

	req, err := readRequest(os.Args[1])
	if err != nil {
		logger.Error("failed to read enclosure request", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(req.LogLevel)); err == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if err := runEnclosure(req, logger); err != nil {
		if execErr, ok := err.(*ExecError); ok {
			logger.Error("exec failed", "program", execErr.Program, "error", execErr.Err)
			os.Exit(126)
		}
		logger.Error("enclosure setup failed", "error", err)
		os.Exit(1)
	}
}

func readRequest(path string) (enterRequest, error) {
	var req enterRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

// runEnclosure performs §4.D's procedure steps 4-8: private mount
// namespace, mirror bind, pivot, rule mounts, optional read-only remount,
// then exec. Steps 1-3 (uid/gid capture and mapping) are handled by the
// kernel at clone(2) time per Enter's SysProcAttr.
func runEnclosure(req enterRequest, logger *slog.Logger) error {
	if err := unix.Mount("none", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return &NamespaceError{Step: "make mount namespace private", Err: err}
	}

	if err := unix.Mount("/", req.StagingPath, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return &NamespaceError{Step: "bind host root onto staging", Err: err}
	}

	if err := pivot(req.StagingPath); err != nil {
		return err
	}

	env := append([]string{}, req.Env...)
	for _, r := range req.Rules {
		if err := installRule(r, logger); err != nil {
			logger.Warn("rule skipped", "rule", r.Name, "error", err)
			continue
		}
		logger.Info("redirect installed", "target", r.Target, "rewrite", r.Rewrite)
		for k, v := range r.Env {
			env = setEnv(env, k, v)
		}
	}

	if req.Immutable {
		if err := unix.Mount("", "/", "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			logger.Warn("immutable remount failed, box runs writable", "error", err)
		}
	}

	if req.WorkingDir != "" {
		if err := unix.Chdir(req.WorkingDir); err != nil {
			logger.Warn("could not chdir to original working directory", "dir", req.WorkingDir, "error", err)
		}
	}

	programPath, err := exec.LookPath(req.Program)
	if err != nil {
		programPath = req.Program
	}
	logger.Info("boxed", "program", req.Program)
	execErr := unix.Exec(programPath, req.Argv, env)
	return &ExecError{Program: req.Program, Err: execErr}
}

// pivot performs the standard pivot_root(".", ".") + umount2(MNT_DETACH)
// idiom: stagingPath is already a mount point (the bind from the previous
// step), which is what lets pivot_root accept it as both new and old root
// in a single directory. After this, "/" is the mirror and nothing
// references the old root.
func pivot(stagingPath string) error {
	if err := unix.Chdir(stagingPath); err != nil {
		return &NamespaceError{Step: "chdir to staging", Err: err}
	}
	if err := unix.PivotRoot(".", "."); err != nil {
		return &NamespaceError{Step: "pivot_root", Err: err}
	}
	if err := unix.Chdir("/"); err != nil {
		return &NamespaceError{Step: "chdir to new root", Err: err}
	}
	if err := unix.Unmount(".", unix.MNT_DETACH); err != nil {
		return &NamespaceError{Step: "detach old root", Err: err}
	}
	return nil
}

// installRule materializes both endpoints and binds rewrite onto target.
// Because the mirror is a recursive bind of the host root, rewrite and
// target are now reachable at their plain canonicalized absolute paths —
// no staging prefix is needed once pivot has taken effect.
func installRule(r ruleSpec, logger *slog.Logger) error {
	if err := EnsureEndpoint(r.Rewrite, r.Mode); err != nil {
		return err
	}
	if err := EnsureEndpoint(r.Target, r.Mode); err != nil {
		return err
	}
	if err := unix.Mount(r.Rewrite, r.Target, "", unix.MS_BIND, ""); err != nil {
		return &MountError{Rule: r.Name, Target: r.Target, Err: err}
	}
	return nil
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
