package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				owner VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);

			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				node_type VARCHAR(64) NOT NULL,
				config JSONB DEFAULT '{}',
				position_x INT DEFAULT 0,
				position_y INT DEFAULT 0,
				sort_order INT NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE TABLE workflow_connections (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				from_node_id VARCHAR(255) NOT NULL,
				to_node_id VARCHAR(255) NOT NULL,
				sort_order INT NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);
		`,
		2: `
			-- Runs and their step journal
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'success', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				output JSONB,
				error TEXT NOT NULL DEFAULT '',
				error_stack TEXT NOT NULL DEFAULT '',
				attempts INT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_executions_workflow_started ON executions(workflow_id, started_at DESC);

			CREATE TABLE execution_steps (
				run_id VARCHAR(255) NOT NULL,
				step_key VARCHAR(512) NOT NULL,
				result JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (run_id, step_key)
			);
		`,
		3: `
			CREATE TABLE credentials (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				type VARCHAR(32) NOT NULL,
				value TEXT NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_credentials_user_id ON credentials(user_id);
		`,
	}
}
