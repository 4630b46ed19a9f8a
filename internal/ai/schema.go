package ai

// executionsSchemaDescription describes the telemetry schema used for NL→SQL
// prompting. Keep in sync with the swap_executions table definition.
const executionsSchemaDescription = `
Database: swaps
Table: swap_executions

Columns:
  - signature           String    -- Transaction signature (second leg for indirect swaps; empty when nothing landed)
  - first_leg_signature String    -- First-leg signature for indirect swaps (empty for direct)
  - timestamp           DateTime  -- When the swap finished (UTC)
  - owner               String    -- Owner wallet (ethereum address for custodial swaps)
  - input_mint          String    -- Mint sold by the user
  - output_mint         String    -- Mint bought by the user
  - input_amount        Float64   -- Amount of input_mint in UI units
  - output_amount       Float64   -- Amount of output_mint in UI units
  - route               String    -- "direct" or "indirect"
  - status              String    -- "success" or "error"
  - stage               String    -- Pipeline stage reached: wallet, quote, build, submit, second_leg_quote, second_leg_build, second_leg_submit
  - error_kind          String    -- WALLET_ERROR, QUOTE_FAILED, BUILD_FAILED, RELAY_FAILED, UNKNOWN (empty on success)
  - error_message       String    -- Raw error text (empty on success)
  - stranded_mint       String    -- Mint holding value after a partial failure (empty otherwise)
  - stranded_amount     Float64   -- Stranded amount in UI units
  - duration_ms         Int64     -- End-to-end execution time in milliseconds

Notes:
  - A partial failure is status = 'error' with first_leg_signature != '' and stranded_mint != '': the first leg landed and value is parked in stranded_mint.
  - For volume use SUM(input_amount) or SUM(output_amount) filtered to status = 'success'.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
`
