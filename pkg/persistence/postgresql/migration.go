package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Catalog
			CREATE TABLE styles (
				id UUID PRIMARY KEY,
				code VARCHAR(50) NOT NULL UNIQUE,
				name VARCHAR(200) NOT NULL,
				target_cost NUMERIC(14, 4),
				target_time_minutes NUMERIC(14, 4),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE colors (
				id UUID PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				hex_code VARCHAR(7)
			);

			CREATE TABLE sizes (
				id UUID PRIMARY KEY,
				code VARCHAR(20) NOT NULL,
				name VARCHAR(100) NOT NULL DEFAULT '',
				quantity_multiplier NUMERIC(8, 4) NOT NULL DEFAULT 1 CHECK (quantity_multiplier >= 0.1)
			);

			CREATE TABLE materials (
				id UUID PRIMARY KEY,
				code VARCHAR(50) NOT NULL UNIQUE,
				name VARCHAR(200) NOT NULL,
				category VARCHAR(100) NOT NULL DEFAULT '',
				unit VARCHAR(20) NOT NULL DEFAULT '',
				unit_cost NUMERIC(14, 4) NOT NULL DEFAULT 0 CHECK (unit_cost >= 0),
				stock NUMERIC(14, 4) NOT NULL DEFAULT 0,
				is_critical BOOLEAN NOT NULL DEFAULT false,
				kind VARCHAR(20) NOT NULL CHECK (kind IN ('yarn', 'dye', 'chemical', 'ink', 'trim', 'packaging')),
				status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE material_color_costs (
				material_id UUID NOT NULL REFERENCES materials(id) ON DELETE CASCADE,
				color_id UUID NOT NULL REFERENCES colors(id) ON DELETE CASCADE,
				additional_cost NUMERIC(14, 4),
				PRIMARY KEY (material_id, color_id)
			);

			CREATE TABLE processes (
				id UUID PRIMARY KEY,
				code VARCHAR(50) NOT NULL UNIQUE,
				name VARCHAR(200) NOT NULL,
				type VARCHAR(100) NOT NULL DEFAULT '',
				base_cost NUMERIC(14, 4) NOT NULL DEFAULT 0 CHECK (base_cost >= 0),
				base_time_minutes NUMERIC(14, 4) NOT NULL DEFAULT 0 CHECK (base_time_minutes >= 0),
				waste_percentage NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (waste_percentage BETWEEN 0 AND 100),
				is_parallel BOOLEAN NOT NULL DEFAULT false,
				is_optional BOOLEAN NOT NULL DEFAULT false,
				requires_color BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			-- Bill of materials
			CREATE TABLE bom_lines (
				id UUID PRIMARY KEY,
				style_id UUID NOT NULL REFERENCES styles(id) ON DELETE CASCADE,
				material_id UUID NOT NULL REFERENCES materials(id),
				process_id UUID REFERENCES processes(id),
				base_quantity NUMERIC(14, 4) NOT NULL CHECK (base_quantity >= 0),
				applies_to_size BOOLEAN NOT NULL DEFAULT false,
				applies_to_color BOOLEAN NOT NULL DEFAULT false,
				is_critical BOOLEAN NOT NULL DEFAULT false,
				status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX uq_bom_lines_active_material ON bom_lines(style_id, material_id) WHERE status = 'active';
			CREATE INDEX idx_bom_lines_style_id ON bom_lines(style_id);
		`,
		2: `
			-- Process flows
			CREATE TABLE flows (
				id UUID PRIMARY KEY,
				style_id UUID NOT NULL REFERENCES styles(id) ON DELETE CASCADE,
				name VARCHAR(200) NOT NULL,
				version INTEGER NOT NULL CHECK (version >= 1),
				is_current BOOLEAN NOT NULL DEFAULT false,
				status VARCHAR(20) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active', 'inactive')),
				total_cost NUMERIC(14, 4) NOT NULL DEFAULT 0,
				total_time_minutes NUMERIC(14, 4) NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (style_id, version)
			);

			CREATE UNIQUE INDEX uq_flows_current ON flows(style_id) WHERE is_current;

			CREATE TABLE flow_nodes (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				process_id UUID NOT NULL REFERENCES processes(id),
				sequence_order INTEGER NOT NULL CHECK (sequence_order >= 1),
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				width DOUBLE PRECISION NOT NULL DEFAULT 200,
				height DOUBLE PRECISION NOT NULL DEFAULT 80,
				custom_cost NUMERIC(14, 4) CHECK (custom_cost >= 0),
				custom_time_minutes NUMERIC(14, 4) CHECK (custom_time_minutes >= 0),
				is_start BOOLEAN NOT NULL DEFAULT false,
				is_end BOOLEAN NOT NULL DEFAULT false,
				notes TEXT NOT NULL DEFAULT '',
				CHECK (NOT (is_start AND is_end))
			);

			CREATE INDEX idx_flow_nodes_flow_id ON flow_nodes(flow_id);

			CREATE TABLE flow_edges (
				id UUID PRIMARY KEY,
				flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
				origin_node_id UUID NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
				destination_node_id UUID NOT NULL REFERENCES flow_nodes(id) ON DELETE CASCADE,
				type VARCHAR(20) NOT NULL DEFAULT 'sequential' CHECK (type IN ('sequential', 'conditional', 'parallel')),
				condition TEXT NOT NULL DEFAULT '',
				label VARCHAR(100) NOT NULL DEFAULT '',
				line_color VARCHAR(7) NOT NULL DEFAULT '',
				priority INTEGER NOT NULL DEFAULT 1 CHECK (priority >= 1),
				CHECK (origin_node_id <> destination_node_id)
			);

			CREATE INDEX idx_flow_edges_flow_id ON flow_edges(flow_id);
		`,
		3: `
			-- Variants and their calculation history
			CREATE TABLE variants (
				id UUID PRIMARY KEY,
				style_id UUID NOT NULL REFERENCES styles(id) ON DELETE CASCADE,
				color_id UUID NOT NULL REFERENCES colors(id),
				size_id UUID NOT NULL REFERENCES sizes(id),
				sku VARCHAR(100) NOT NULL,
				cost NUMERIC(14, 4) NOT NULL DEFAULT 0,
				time_minutes NUMERIC(14, 4) NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (style_id, color_id, size_id)
			);

			-- flow_id has no foreign key: history survives flow deletion.
			CREATE TABLE variant_calculations (
				id UUID PRIMARY KEY,
				variant_id UUID NOT NULL REFERENCES variants(id) ON DELETE CASCADE,
				flow_id UUID NOT NULL,
				material_cost NUMERIC(14, 4) NOT NULL,
				process_cost NUMERIC(14, 4) NOT NULL,
				total_cost NUMERIC(14, 4) NOT NULL,
				total_time_minutes NUMERIC(14, 4) NOT NULL,
				pieces INTEGER NOT NULL CHECK (pieces >= 1),
				version INTEGER NOT NULL CHECK (version >= 1),
				is_current BOOLEAN NOT NULL DEFAULT false,
				calculated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				UNIQUE (variant_id, version)
			);

			CREATE UNIQUE INDEX uq_variant_calculations_current ON variant_calculations(variant_id) WHERE is_current;
			CREATE INDEX idx_variant_calculations_flow_id ON variant_calculations(flow_id);
		`,
	}
}
