// Package crafting implements the collectible economy: bundles bought with
// reward tokens open into fragments, and a full set of nine fragment kinds
// is burned to build one main NFT.
package crafting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/alejandrodnm/arenabet/internal/application/engine"
	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/alejandrodnm/arenabet/internal/ports"
)

// Economy runs the crafting operations.
type Economy struct {
	rt      *engine.Runtime
	params  domain.Economy
	minter  *Minter
	entropy ports.EntropySource
}

// New builds the crafting service.
func New(rt *engine.Runtime, params domain.Economy, minter *Minter, entropy ports.EntropySource) *Economy {
	return &Economy{rt: rt, params: params, minter: minter, entropy: entropy}
}

// MintFragment grants one fragment of kind to user. Admin only.
func (e *Economy) MintFragment(ctx context.Context, caller, user string, kind int) error {
	if !domain.ValidFragment(kind) {
		return fmt.Errorf("crafting.MintFragment: kind %d: %w", kind, domain.ErrInvalidParameter)
	}
	return e.rt.Atomic(ctx, []string{engine.AccountKey(user)}, func(tx ports.Tx) error {
		if _, err := engine.RequireAdmin(ctx, tx, caller); err != nil {
			return fmt.Errorf("crafting.MintFragment: %w", err)
		}
		if err := tx.Ledger().Mint(ctx, domain.FragmentToken(kind), user, 1); err != nil {
			return fmt.Errorf("crafting.MintFragment: %w", err)
		}
		return nil
	})
}

// BurnFragments burns one of each fragment kind and records a pending build.
func (e *Economy) BurnFragments(ctx context.Context, user string) (domain.NftBuild, error) {
	var build domain.NftBuild
	err := e.rt.Atomic(ctx, []string{engine.AccountKey(user), engine.BuildKey(user)}, func(tx ports.Tx) error {
		var missing []int
		for k := 1; k <= domain.FragmentKinds; k++ {
			bal, err := tx.Ledger().Balance(ctx, domain.FragmentToken(k), user)
			if err != nil {
				return fmt.Errorf("crafting.BurnFragments: %w", err)
			}
			if bal < 1 {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("crafting.BurnFragments: %s lacks kinds %v: %w", user, missing, domain.ErrIncompleteSet)
		}
		for k := 1; k <= domain.FragmentKinds; k++ {
			if err := tx.Ledger().Burn(ctx, domain.FragmentToken(k), user, 1); err != nil {
				return fmt.Errorf("crafting.BurnFragments: %w", err)
			}
		}

		b, err := tx.NftBuild(ctx, user)
		if errors.Is(err, domain.ErrNotFound) {
			b = domain.NftBuild{UserID: user}
		} else if err != nil {
			return fmt.Errorf("crafting.BurnFragments: %w", err)
		}
		b.Pending++
		b.UpdatedAt = e.rt.Now()
		if err := tx.SaveNftBuild(ctx, b); err != nil {
			return fmt.Errorf("crafting.BurnFragments: %w", err)
		}
		build = b
		return nil
	})
	if err != nil {
		return domain.NftBuild{}, err
	}
	slog.Info("crafting: fragments burned", "user", user, "pending", build.Pending)
	return build, nil
}

// BuildNft consumes one pending build and mints the main NFT.
func (e *Economy) BuildNft(ctx context.Context, user string) (domain.Metadata, error) {
	var md domain.Metadata
	err := e.rt.Atomic(ctx, []string{engine.AccountKey(user), engine.BuildKey(user)}, func(tx ports.Tx) error {
		b, err := tx.NftBuild(ctx, user)
		if err != nil {
			return fmt.Errorf("crafting.BuildNft: %w", err)
		}
		if md, err = e.minter.Nft(ctx, tx, user); err != nil {
			return fmt.Errorf("crafting.BuildNft: %w", err)
		}
		b.Pending--
		if b.Pending <= 0 {
			return tx.DeleteNftBuild(ctx, user)
		}
		b.UpdatedAt = e.rt.Now()
		return tx.SaveNftBuild(ctx, b)
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	slog.Info("crafting: nft built", "user", user, "mint", md.Mint)
	return md, nil
}

// BuyBundle charges the bundle cost in reward tokens and mints the bundle.
func (e *Economy) BuyBundle(ctx context.Context, user string, bundleID int) (domain.Metadata, error) {
	spec, err := e.params.Bundle(bundleID)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("crafting.BuyBundle: %w", err)
	}
	var md domain.Metadata
	err = e.rt.Atomic(ctx, []string{engine.AccountKey(user), engine.TreasuryKey}, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("crafting.BuyBundle: %w", err)
		}
		if err := e.charge(ctx, tx, cfg, user, spec.Cost); err != nil {
			return fmt.Errorf("crafting.BuyBundle: %w", err)
		}
		if md, err = e.minter.Bundle(ctx, tx, user, bundleID); err != nil {
			return fmt.Errorf("crafting.BuyBundle: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	slog.Info("crafting: bundle bought", "user", user, "bundle", bundleID, "mint", md.Mint)
	return md, nil
}

// BuyNft charges the NFT cost in reward tokens and mints a main NFT.
func (e *Economy) BuyNft(ctx context.Context, user string) (domain.Metadata, error) {
	var md domain.Metadata
	err := e.rt.Atomic(ctx, []string{engine.AccountKey(user), engine.TreasuryKey}, func(tx ports.Tx) error {
		cfg, err := engine.LoadConfig(ctx, tx)
		if err != nil {
			return fmt.Errorf("crafting.BuyNft: %w", err)
		}
		if err := e.charge(ctx, tx, cfg, user, e.params.NftCost); err != nil {
			return fmt.Errorf("crafting.BuyNft: %w", err)
		}
		if md, err = e.minter.Nft(ctx, tx, user); err != nil {
			return fmt.Errorf("crafting.BuyNft: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Metadata{}, err
	}
	slog.Info("crafting: nft bought", "user", user, "mint", md.Mint)
	return md, nil
}

// OpenBundle burns a held bundle and mints the fragments it rolls.
// The entropy draw runs between two transactions with only the user's
// account key held.
func (e *Economy) OpenBundle(ctx context.Context, user, mint string) (domain.BundleOpening, error) {
	out := domain.BundleOpening{Mint: mint}
	err := e.rt.Locked(ctx, []string{engine.AccountKey(user)}, func(ctx context.Context) error {
		var spec domain.BundleSpec
		err := e.rt.Tx(ctx, func(tx ports.Tx) error {
			var err error
			out.BundleID, spec, err = e.heldBundle(ctx, tx, user, mint)
			return err
		})
		if err != nil {
			return fmt.Errorf("crafting.OpenBundle: %w", err)
		}

		draws, err := e.entropy.Draw(ctx, spec.RewardCount)
		if err != nil {
			return fmt.Errorf("crafting.OpenBundle: entropy: %w", err)
		}
		if len(draws) < spec.RewardCount {
			return fmt.Errorf("crafting.OpenBundle: entropy returned %d of %d values", len(draws), spec.RewardCount)
		}

		return e.rt.Tx(ctx, func(tx ports.Tx) error {
			out.Fragments = out.Fragments[:0]
			for _, v := range draws[:spec.RewardCount] {
				k := domain.PickFragment(spec.Rates, v)
				if err := tx.Ledger().Mint(ctx, domain.FragmentToken(k), user, 1); err != nil {
					return fmt.Errorf("crafting.OpenBundle: %w", err)
				}
				out.Fragments = append(out.Fragments, k)
			}
			if err := tx.Ledger().Burn(ctx, mint, user, 1); err != nil {
				return fmt.Errorf("crafting.OpenBundle: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return domain.BundleOpening{}, err
	}
	slog.Info("crafting: bundle opened", "user", user, "bundle", out.BundleID, "fragments", out.Fragments)
	return out, nil
}

// heldBundle checks user holds bundle mint and returns its bundle id and spec.
func (e *Economy) heldBundle(ctx context.Context, tx ports.Tx, user, mint string) (int, domain.BundleSpec, error) {
	held, err := tx.Ledger().Balance(ctx, mint, user)
	if err != nil {
		return 0, domain.BundleSpec{}, err
	}
	if held < 1 {
		return 0, domain.BundleSpec{}, fmt.Errorf("%s does not hold %s: %w", user, mint, domain.ErrNotFound)
	}
	md, err := tx.Registry().Metadata(ctx, mint)
	if err != nil {
		return 0, domain.BundleSpec{}, err
	}
	if md.Creator != domain.BundleMinter || md.Symbol != domain.BundleSymbol {
		return 0, domain.BundleSpec{}, fmt.Errorf("%s is not a bundle: %w", mint, domain.ErrInvalidParameter)
	}
	id, err := strconv.Atoi(md.Attributes[bundleIDAttr])
	if err != nil {
		return 0, domain.BundleSpec{}, fmt.Errorf("bundle id %q: %w", md.Attributes[bundleIDAttr], domain.ErrInvalidParameter)
	}
	spec, err := e.params.Bundle(id)
	if err != nil {
		return 0, domain.BundleSpec{}, err
	}
	return id, spec, nil
}

// charge burns the configured share of price and sends the rest to treasury.
// Purchases by the treasury itself move nothing.
func (e *Economy) charge(ctx context.Context, tx ports.Tx, cfg domain.GlobalConfig, user string, price int64) error {
	if user == cfg.Treasury || price == 0 {
		return nil
	}
	burn := domain.MulDiv(price, e.params.BurnBps, domain.FeeDenominator)
	if err := tx.Ledger().Burn(ctx, cfg.RewardToken, user, burn); err != nil {
		return err
	}
	return tx.Ledger().Transfer(ctx, cfg.RewardToken, user, cfg.Treasury, price-burn)
}
