package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/networks"
)

// SimulatedTxHash derives a deterministic stand-in transaction hash from the
// payout identity: 0x-prefixed keccak256 for EVM chains, sim-sol- for Solana.
func SimulatedTxHash(family networks.Family, payout model.CryptoPayout) string {
	identity := strings.Join([]string{
		payout.ID,
		payout.OwnerUserID,
		payout.PayeeID,
		payout.DestinationAddr,
		payout.Chain,
		payout.Network,
		payout.Token,
		strconv.FormatInt(payout.AmountCents, 10),
	}, "|")

	if family == networks.FamilySolana {
		sum := sha256.Sum256([]byte(identity))
		return "sim-sol-" + hex.EncodeToString(sum[:])[:48]
	}
	return crypto.Keccak256Hash([]byte(identity)).Hex()
}
