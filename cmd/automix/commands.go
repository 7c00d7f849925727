package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/autodj"
	"github.com/satindergrewal/automix/internal/compat"
	"github.com/satindergrewal/automix/internal/mixer"
	"github.com/satindergrewal/automix/internal/store"
	"github.com/satindergrewal/automix/internal/transition"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runAnalyze(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("analyze", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return errors.New("usage: automix analyze <file>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.mixer.Analyze(ctx, fset.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(res)
}

type scanRow struct {
	path string
	f    compat.Features
	err  error
}

func runScan(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("scan", flag.ExitOnError)
	workers := fset.Int("j", runtime.NumCPU(), "parallel analyses")
	fset.Parse(args)
	if fset.NArg() != 1 {
		return errors.New("usage: automix scan [-j workers] <dir>")
	}

	paths, err := collectAudio(fset.Arg(0))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no audio files under %s", fset.Arg(0))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(len(paths)),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
	)

	rows := make([]scanRow, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			start := time.Now()
			f, err := a.features.Features(gctx, path)
			rows[i] = scanRow{path: path, f: f, err: err}
			bar.EwmaIncrement(time.Since(start))
			// one unreadable file should not stop the scan
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		bar.Abort(false)
		p.Wait()
		return err
	}
	p.Wait()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tBPM\tCONF\tKEY\tDURATION")
	failed := 0
	for _, r := range rows {
		if r.err != nil {
			failed++
			a.log.Warnw("Analysis failed", "path", r.path, "error", r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.2f\t%s\t%.1fs\n", r.path, r.f.BPM, r.f.BeatConfidence, r.f.Key, r.f.Duration)
	}
	tw.Flush()
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be analyzed", failed, len(rows))
	}
	return nil
}

// collectAudio returns every audio file under root in lexical order.
func collectAudio(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audio.IsAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// expandPaths replaces every directory argument with the audio files under
// it. Files are kept in argument order.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// missing files surface as decode errors when mixing
			paths = append(paths, arg)
			continue
		}
		found, err := collectAudio(arg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no audio files under %s", arg)
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("evaluate", flag.ExitOnError)
	fset.Parse(args)
	if fset.NArg() != 2 {
		return errors.New("usage: automix evaluate <track_a> <track_b>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.mixer.EvaluateCompatibility(ctx, fset.Arg(0), fset.Arg(1))
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runMix(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mix", flag.ExitOnError)
	strategy := fset.String("s", transition.Crossfade, "transition strategy, or auto")
	output := fset.String("o", "mix.mp3", "output file")
	seconds := fset.Float64("d", 0, "transition duration in seconds, 0 for adaptive")
	fset.Parse(args)
	if fset.NArg() != 2 {
		return errors.New("usage: automix mix [-s strategy] [-o output] [-d seconds] <track_a> <track_b>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.mixer.Mix(ctx, mixer.Request{
		TrackA:             fset.Arg(0),
		TrackB:             fset.Arg(1),
		Strategy:           *strategy,
		TransitionDuration: time.Duration(*seconds * float64(time.Second)),
		Output:             *output,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runPlaylist(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("playlist", flag.ExitOnError)
	strategy := fset.String("s", mixer.Auto, "transition strategy, or auto")
	output := fset.String("o", "playlist.mp3", "output file")
	order := fset.Bool("order", false, "reorder tracks by compatibility before mixing")
	fset.Parse(args)
	if fset.NArg() == 0 {
		return errors.New("usage: automix playlist [-s strategy] [-o output] [-order] <files or dirs...>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	paths, err := expandPaths(fset.Args())
	if err != nil {
		return err
	}
	if *order {
		if paths, err = a.order(ctx, paths); err != nil {
			return err
		}
	}

	steps := int64(max(len(paths)-1, 1))
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(steps,
		mpb.PrependDecorators(
			decor.Name("Transitions: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Elapsed(decor.ET_STYLE_GO)),
	)

	res, err := a.mixer.MixPlaylist(ctx, paths, *strategy, *output, func(done, total int) {
		bar.SetCurrent(int64(done))
	})
	if err != nil {
		bar.Abort(false)
		p.Wait()
		return err
	}
	bar.SetTotal(steps, true)
	p.Wait()
	return printJSON(res)
}

// order analyzes every track and returns paths in compatibility order.
func (a *app) order(ctx context.Context, paths []string) ([]string, error) {
	feats := make([]compat.Features, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			f, err := a.features.Features(gctx, path)
			feats[i] = f
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	g := autodj.NewGraph(feats)
	idx := g.Order()
	ordered := make([]string, len(idx))
	for i, j := range idx {
		ordered[i] = paths[j]
	}
	a.log.Infow("Playlist ordered", "order", ordered)
	for _, k := range g.WeakLinks(idx, autodj.WeakLinkScore) {
		a.log.Warnw("Weak transition in ordered playlist", "from", ordered[k], "to", ordered[k+1],
			"score", g.Score(idx[k], idx[k+1]))
	}
	return ordered, nil
}

func runCache(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("cache", flag.ExitOnError)
	fset.Parse(args)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if a.store == nil {
		return errors.New("no feature cache configured, set AUTOMIX_CACHE_PATH")
	}

	entries, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	return printCache(os.Stdout, entries)
}

func printCache(w io.Writer, entries []store.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tBPM\tKEY\tDURATION\tANALYZED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%.1fs\t%s\n", e.Path, e.Features.BPM, e.Features.Key,
			e.Features.Duration, e.AnalyzedAt.Format(time.DateTime))
	}
	fmt.Fprintf(tw, "\n%d cached tracks\n", len(entries))
	return tw.Flush()
}

func runStrategies() error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tDESCRIPTION")
	for _, info := range transition.Catalogue() {
		fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
	}
	fmt.Fprintf(tw, "%s\t%s\n", mixer.Auto, "use the strategy recommended by compatibility scoring")
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "curves:\t%v\n", transition.Curves())
	return tw.Flush()
}
