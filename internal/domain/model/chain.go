package model

type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainPolygon  Chain = "polygon"
)

func (c Chain) String() string {
	return string(c)
}

// TransferCategory is the vendor-side transfer classification. Only ERC-20
// transfers are ingested; everything else is filtered at normalization.
type TransferCategory string

const (
	CategoryERC20 TransferCategory = "erc20"
)

// ZeroAddress is the native-asset placeholder the vendor reports for
// contractless transfers. Excluded from price lookups.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
