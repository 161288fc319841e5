package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"loudscan/internal/config"
	"loudscan/internal/resultcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var fileFlag string

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage result cache snapshots",
	}

	cacheCmd.PersistentFlags().StringVarP(&fileFlag, "file", "f", "", "Cache snapshot path (defaults to paths.cache_file)")

	cacheCmd.AddCommand(newCacheListCommand(ctx, &fileFlag))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx, &fileFlag))
	cacheCmd.AddCommand(newCacheClearCommand(ctx, &fileFlag))

	return cacheCmd
}

func cacheFilePath(ctx *commandContext, fileFlag *string) (string, error) {
	raw := ""
	if fileFlag != nil {
		raw = strings.TrimSpace(*fileFlag)
	}
	if raw == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", err
		}
		raw = strings.TrimSpace(cfg.Paths.CacheFile)
	}
	if raw == "" {
		return "", errors.New("no cache file configured; set paths.cache_file or pass --file")
	}
	return config.ExpandPath(raw)
}

// withLockedCache loads the snapshot under its advisory lock so cache
// edits cannot interleave with a running measurement.
func withLockedCache(path string, fn func(cache *resultcache.Cache) error) error {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("cache %s is in use by another loudscan run", path)
	}
	defer func() { _ = lock.Unlock() }()

	cache, err := resultcache.Load(path, nil)
	if err != nil {
		return err
	}
	return fn(cache)
}

func newCacheListCommand(ctx *commandContext, fileFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cacheFilePath(ctx, fileFlag)
			if err != nil {
				return err
			}

			cache, err := resultcache.Load(path, nil)
			if err != nil {
				return err
			}

			entries := cache.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Key,
					fmt.Sprintf("%.2f", entry.Measurement.Loudness),
					fmt.Sprintf("%.4f", entry.Measurement.Energy),
				})
			}
			renderRows(cmd.OutOrStdout(), []string{"Key", "LUFS", "Energy"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight})
			return nil
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext, fileFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove one cached measurement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cacheFilePath(ctx, fileFlag)
			if err != nil {
				return err
			}

			key := strings.TrimSpace(args[0])
			return withLockedCache(path, func(cache *resultcache.Cache) error {
				if !cache.Remove(key) {
					fmt.Fprintf(cmd.OutOrStdout(), "Key %q not found\n", key)
					return nil
				}
				if err := cache.Snapshot(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", key)
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext, fileFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cacheFilePath(ctx, fileFlag)
			if err != nil {
				return err
			}

			return withLockedCache(path, func(cache *resultcache.Cache) error {
				removed := cache.Clear()
				if err := cache.Snapshot(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached results\n", removed)
				return nil
			})
		},
	}
}
