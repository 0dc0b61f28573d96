package emulator

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/vfs"
	"golang.org/x/sync/errgroup"
)

const presetExtension = ".glslp"

// Stage writes everything a launch needs into a core filesystem: ROMs,
// BIOS files, the preloaded state and SRAM, both config files and the
// shader. The filesystem must have been prepared.
func Stage(ctx context.Context, fs *vfs.FS, res *options.Resolved) error {
	for _, f := range res.BIOS {
		if f.Name() == "" {
			return fmt.Errorf("%w: file name is required for bios", emuerr.ErrInvalidInput)
		}
	}

	layout := fs.Layout()
	paths := PathsFor(layout, res)
	if res.State != nil {
		if err := fs.MkdirTree(layout.StateDir(paths.Core)); err != nil {
			return err
		}
	}
	if res.SRAM != nil {
		if err := fs.MkdirTree(layout.SaveDir(paths.Core)); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	write := func(target string, f *resolvable.File) {
		g.Go(func() error { return fs.WriteFile(gctx, target, f) })
	}
	for _, f := range res.ROM {
		write(path.Join(layout.Content(), f.Name()), f)
	}
	for _, f := range res.BIOS {
		write(path.Join(layout.System(), f.Name()), f)
	}
	if res.State != nil {
		write(paths.AutoState(), res.State)
	}
	if res.SRAM != nil {
		write(paths.SRAMFile(), res.SRAM)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := emuerr.CheckAborted(ctx); err != nil {
		return err
	}

	if err := fs.WriteINI(ctx, layout.ConfigFile(), res.EmulatorConfig); err != nil {
		return err
	}
	if err := fs.WriteINI(ctx, layout.CoreConfigFile(), res.CoreConfig); err != nil {
		return err
	}
	if err := stageShader(ctx, fs, res.Shader); err != nil {
		return err
	}
	return emuerr.CheckAborted(ctx)
}

// stageShader references every preset from the global preset file. A
// shader without a preset is not staged at all.
func stageShader(ctx context.Context, fs *vfs.FS, files []*resolvable.File) error {
	var presets []string
	for _, f := range files {
		if strings.HasSuffix(f.Name(), presetExtension) {
			presets = append(presets, f.Name())
		}
	}
	if len(presets) == 0 {
		return nil
	}

	layout := fs.Layout()
	lines := make([]string, 0, len(presets))
	for _, name := range presets {
		lines = append(lines, fmt.Sprintf("#reference %q", path.Join(layout.Shader(), name)))
	}
	global := resolvable.Text(strings.Join(lines, "\n"))
	if err := fs.WriteFile(ctx, layout.GlobalShaderPreset(), global); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		dir := layout.ShaderAssets()
		if f.Extension() == presetExtension {
			dir = layout.Shader()
		}
		g.Go(func() error { return fs.WriteFile(gctx, path.Join(dir, f.Name()), f) })
	}
	return g.Wait()
}
