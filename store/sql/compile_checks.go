package sqlstore

import "github.com/usufslc/aggie-auth/core"

var (
	_ core.APICredentialStore     = (*APICredentialStore)(nil)
	_ core.APICredentialStore     = (*CachedAPICredentialStore)(nil)
	_ core.VerificationStore      = (*VerificationStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
