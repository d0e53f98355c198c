package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	limit_price TEXT NOT NULL,
	qty INTEGER NOT NULL,
	filled INTEGER NOT NULL,
	odd_lot INTEGER NOT NULL,
	submitted_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price TEXT NOT NULL,
	qty INTEGER NOT NULL,
	gross TEXT NOT NULL,
	commission TEXT NOT NULL,
	tax TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	run_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	type TEXT NOT NULL,
	ref TEXT NOT NULL,
	amount TEXT NOT NULL,
	balance_after TEXT NOT NULL,
	time DATETIME NOT NULL,
	PRIMARY KEY (account_id, seq)
);

CREATE TABLE IF NOT EXISTS dividends (
	run_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	ex_date DATETIME NOT NULL,
	pay_date DATETIME NOT NULL,
	per_share TEXT NOT NULL,
	shares INTEGER NOT NULL,
	amount TEXT NOT NULL,
	PRIMARY KEY (account_id, symbol, ex_date)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	cash TEXT NOT NULL,
	market_value TEXT NOT NULL,
	equity TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	universe TEXT NOT NULL,
	fill_policy TEXT NOT NULL,
	start DATETIME NOT NULL,
	end DATETIME NOT NULL,
	initial_cash TEXT NOT NULL,
	final_equity TEXT NOT NULL,
	total_return TEXT NOT NULL,
	max_drawdown TEXT NOT NULL,
	turnover TEXT NOT NULL,
	traded_notional TEXT NOT NULL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_run ON orders(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
CREATE INDEX IF NOT EXISTS idx_entries_run ON ledger_entries(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
