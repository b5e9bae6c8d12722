package domain

import "github.com/Apurer/fund-ledger/internal/shared/reason"

// Failure reasons raised by fund operations.
var (
	ErrFundNotFound = reason.New(reason.ClassNotFound, "FundNotFound", "fund does not exist")

	ErrPoolPaused             = reason.New(reason.ClassPolicy, "PoolPaused", "fund is paused")
	ErrInvalidDepositAsset    = reason.New(reason.ClassPolicy, "InvalidDepositAsset", "asset is not deposit eligible")
	ErrInvalidAmount          = reason.New(reason.ClassPolicy, "InvalidAmount", "amount must be positive")
	ErrOnlyMembersAllowed     = reason.New(reason.ClassPolicy, "OnlyMembersAllowed", "recipient is not a member of the private fund")
	ErrOnlyManager            = reason.New(reason.ClassPolicy, "OnlyManager", "caller is not the manager")
	ErrOnlyManagerOrTrader    = reason.New(reason.ClassPolicy, "OnlyManagerOrTrader", "caller is not the manager or trader")
	ErrOnlyCustomCooldown     = reason.New(reason.ClassPolicy, "OnlyCustomCooldownCaller", "caller may not choose the cooldown")
	ErrOnlyGovernance         = reason.New(reason.ClassPolicy, "OnlyGovernance", "caller is not governance")
	ErrInvalidTransaction     = reason.New(reason.ClassPolicy, "InvalidTransaction", "no guard authorizes the transaction")
	ErrMaxSupportedAssets     = reason.New(reason.ClassPolicy, "MaxSupportedAssetsReached", "too many supported assets")
	ErrAssetNotSupported      = reason.New(reason.ClassPolicy, "AssetNotSupported", "asset is not supported by the fund")
	ErrNonEmptyAsset          = reason.New(reason.ClassPolicy, "NonEmptyAsset", "asset balance must be zero to remove it")
	ErrNoDepositAsset         = reason.New(reason.ClassPolicy, "NoDepositAsset", "at least one deposit asset is required")
	ErrDuplicateAsset         = reason.New(reason.ClassPolicy, "DuplicateAsset", "asset listed more than once")
	ErrFeeTooHigh             = reason.New(reason.ClassPolicy, "FeeTooHigh", "fee exceeds the allowed maximum")
	ErrFeeIncreaseNotAllowed  = reason.New(reason.ClassPolicy, "FeeIncreaseNotAllowed", "fees may only be raised through an announcement")
	ErrFeeChangeTooLarge      = reason.New(reason.ClassPolicy, "FeeChangeTooLarge", "fee increase exceeds the allowed step")
	ErrNoFeeProposal          = reason.New(reason.ClassPolicy, "NoFeeProposal", "no fee increase has been announced")
	ErrCollectionNotAllowed   = reason.New(reason.ClassPolicy, "MembershipCollectionNotAllowed", "collection is not approved for membership")
	ErrInvalidFund            = reason.New(reason.ClassPolicy, "InvalidFund", "fund parameters are invalid")
	ErrInvalidSchemaMigration = reason.New(reason.ClassPolicy, "InvalidSchemaMigration", "schema version can only move forward")
	ErrReentrantCall          = reason.New(reason.ClassPolicy, "ReentrantCall", "fund is already executing a call")
	ErrIdempotencyConflict    = reason.New(reason.ClassPolicy, "IdempotencyConflict", "idempotency key reused with a different request")

	ErrInvalidLiquidityMinted = reason.New(reason.ClassEconomic, "InvalidLiquidityMinted", "minted shares below minimum liquidity")
	ErrBelowSupplyThreshold   = reason.New(reason.ClassEconomic, "BelowSupplyThreshold", "residual supply would fall below minimum liquidity")
	ErrBelowMinimumDeposit    = reason.New(reason.ClassEconomic, "BelowMinimumDepositUSD", "deposit value below the fund minimum")
	ErrZeroFundValue          = reason.New(reason.ClassEconomic, "ZeroFundValue", "fund has supply but no value")
	ErrInsufficientShares     = reason.New(reason.ClassEconomic, "InsufficientShares", "holder does not own enough shares")
	ErrHighWithdrawSlippage   = reason.New(reason.ClassEconomic, "HighWithdrawSlippage", "withdrawn value below tolerance")

	ErrCooldownActive         = reason.New(reason.ClassTiming, "CooldownActive", "shares are still in cooldown")
	ErrFeeIncreaseDelayActive = reason.New(reason.ClassTiming, "FeeIncreaseDelayActive", "fee increase delay has not elapsed")

	ErrExternalCallFailed = reason.New(reason.ClassExternal, "ExternalCallFailed", "external call failed")
)
