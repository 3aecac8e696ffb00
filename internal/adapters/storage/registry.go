package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/arenabet/internal/domain"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	holderSeed   = "holder"
	metadataSeed = "metadata"
	editionSeed  = "edition"
)

// registry implementa ports.MetadataRegistry. Las direcciones se derivan
// de forma determinista con keccak256 sobre seeds fijas.
type registry struct {
	tx *sql.Tx
}

// DeriveAddress is keccak256 over the seeds, hex encoded.
func DeriveAddress(seeds ...string) string {
	parts := make([][]byte, len(seeds))
	for i, s := range seeds {
		parts[i] = []byte(s)
	}
	return crypto.Keccak256Hash(parts...).Hex()
}

func (r *registry) CreateMetadata(ctx context.Context, md domain.Metadata) (domain.Metadata, error) {
	var exists bool
	if err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM metadata WHERE mint = ?)`, md.Mint,
	).Scan(&exists); err != nil {
		return domain.Metadata{}, fmt.Errorf("registry.CreateMetadata: %w", err)
	}
	if exists {
		return domain.Metadata{}, fmt.Errorf("registry.CreateMetadata %s: %w", md.Mint, domain.ErrDuplicateEntry)
	}

	md.HolderAccount = DeriveAddress(holderSeed, md.Owner, md.Mint)
	md.MetadataAddress = DeriveAddress(metadataSeed, md.Mint)
	if md.Attributes == nil {
		md.Attributes = map[string]string{}
	}
	attrs, err := json.Marshal(md.Attributes)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("registry.CreateMetadata: attributes: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, `
		INSERT INTO metadata (mint, name, symbol, uri, creator, owner, attributes,
			holder_account, metadata_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		md.Mint, md.Name, md.Symbol, md.URI, md.Creator, md.Owner, string(attrs),
		md.HolderAccount, md.MetadataAddress, toUnix(md.CreatedAt),
	); err != nil {
		return domain.Metadata{}, fmt.Errorf("registry.CreateMetadata %s: %w", md.Mint, err)
	}
	return md, nil
}

func (r *registry) CreateEdition(ctx context.Context, mint string) (string, error) {
	addr := DeriveAddress(editionSeed, mint)
	res, err := r.tx.ExecContext(ctx,
		`UPDATE metadata SET edition_address = ? WHERE mint = ? AND edition_address = ''`, addr, mint)
	if err != nil {
		return "", fmt.Errorf("registry.CreateEdition %s: %w", mint, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Metadata(ctx, mint); err != nil {
			return "", fmt.Errorf("registry.CreateEdition: %w", err)
		}
		return "", fmt.Errorf("registry.CreateEdition %s: %w", mint, domain.ErrDuplicateEntry)
	}
	return addr, nil
}

func (r *registry) Metadata(ctx context.Context, mint string) (domain.Metadata, error) {
	md := domain.Metadata{Mint: mint}
	var (
		attrs   string
		created int64
	)
	err := r.tx.QueryRowContext(ctx, `
		SELECT name, symbol, uri, creator, owner, attributes, holder_account,
			metadata_address, edition_address, created_at
		FROM metadata WHERE mint = ?`, mint,
	).Scan(&md.Name, &md.Symbol, &md.URI, &md.Creator, &md.Owner, &attrs,
		&md.HolderAccount, &md.MetadataAddress, &md.EditionAddress, &created)
	if err != nil {
		return domain.Metadata{}, notFound("registry.Metadata", mint, err)
	}
	if err := json.Unmarshal([]byte(attrs), &md.Attributes); err != nil {
		return domain.Metadata{}, fmt.Errorf("registry.Metadata %s: attributes: %w", mint, err)
	}
	md.CreatedAt = fromUnix(created)
	return md, nil
}
