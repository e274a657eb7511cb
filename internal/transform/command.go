package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

type commandOptions struct {
	Cmd     string        `yaml:"cmd"`
	Args    []string      `yaml:"args"`
	Env     []string      `yaml:"env"`
	Timeout time.Duration `yaml:"timeout"`
	// Family overrides the family of the produced content.
	Family string `yaml:"family"`
	// Cache allows results to be memoized. Off by default since
	// preprocessors read imported files the module graph never sees.
	Cache bool `yaml:"cache"`
}

// commandTransform pipes content through an external program: the module
// bytes go to stdin and stdout becomes the new content.
type commandTransform struct {
	opts   commandOptions
	family module.Family
}

func newCommand(opts Options) (Transform, error) {
	o := commandOptions{Timeout: time.Minute}
	if err := opts.Decode(&o); err != nil {
		return nil, err
	}
	if o.Cmd == "" {
		return nil, errors.New("cmd is required")
	}
	t := &commandTransform{opts: o}
	switch module.Family(o.Family) {
	case "":
	case module.FamilyScript, module.FamilyStyle, module.FamilyAsset:
		t.family = module.Family(o.Family)
	default:
		return nil, fmt.Errorf("invalid family %q", o.Family)
	}
	return t, nil
}

func (t *commandTransform) Name() string { return "command" }

func (t *commandTransform) Cacheable() bool { return t.opts.Cache }

func (t *commandTransform) Apply(ctx context.Context, in Input) (Output, error) {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, t.opts.Cmd, t.opts.Args...)
	if in.Path != "" {
		cmd.Dir = filepath.Dir(in.Path)
	}
	cmd.Env = append(append(os.Environ(), t.opts.Env...), "ASSETPIPE_MODULE="+in.ID)
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(in.Bytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Output{}, fmt.Errorf("%s: %w: %s", t.opts.Cmd, err, msg)
		}
		return Output{}, fmt.Errorf("%s: %w", t.opts.Cmd, err)
	}
	out := in.Pass()
	out.Bytes = stdout.Bytes()
	if t.family != "" {
		out.Family = t.family
	}
	return out, nil
}
