// Package config loads ReadAny settings from YAML with environment overrides.
//
// Lookup order for LoadDefault is $READANY_CONFIG, ./readany.yaml, then
// ~/.readany/config.yaml. Missing files yield DefaultConfig. After the file is
// decoded, zero values are filled from defaults and the READANY_* variables
// are applied on top:
//
//	READANY_DB_PATH              storage.path
//	READANY_STORAGE_DRIVER       storage.driver
//	READANY_LIBRARY_DIR          library.root
//	READANY_EMBEDDING_PROVIDER   embedding.provider
//
// A minimal file:
//
//	storage:
//	  driver: sqlite
//	  path: ~/.readany/vectors.db
//	embedding:
//	  provider: jina
//	  api_key_env: JINA_API_KEY
//	search:
//	  default_mode: hybrid
//	  default_top_k: 5
package config
