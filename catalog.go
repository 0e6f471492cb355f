package compliance

import "github.com/brunobiangulo/compliance/analysis"

// requirementCatalog is the frozen set of five security compliance
// requirements the engine evaluates every uploaded contract against.
// Changing an entry's question, rubric, or query is a behavior change, not a
// bug fix; these strings are part of the system's observable contract.
var requirementCatalog = []analysis.Requirement{
	{
		ID:                 "password_management",
		ComplianceQuestion: "Does the contract require a password policy covering minimum length, complexity, rotation, and secure storage (hashing or a vault) for any accounts or credentials it governs?",
		Rubric: "Fully Compliant: the contract specifies minimum length, complexity, rotation interval, and secure storage/hashing requirements. " +
			"Partially Compliant: the contract addresses some but not all of length, complexity, rotation, or secure storage. " +
			"Non-Compliant: the contract is silent on password requirements, or only references a policy without stating its substance.",
		BM25Query: "password policy complexity length rotation hashing mfa lockout vault",
	},
	{
		ID:                 "it_asset_management",
		ComplianceQuestion: "Does the contract require an inventory of IT assets (hardware, software, endpoints) with defined ownership, tracking, and a disposal or decommissioning process?",
		Rubric: "Fully Compliant: the contract requires an asset inventory, assigns ownership or custodianship, and defines a secure disposal/decommissioning process. " +
			"Partially Compliant: the contract requires an inventory or tracking but omits ownership assignment or disposal procedures. " +
			"Non-Compliant: the contract does not address asset inventory, tracking, or disposal.",
		BM25Query: "asset inventory hardware software tracking ownership disposal decommission endpoint register",
	},
	{
		ID:                 "security_training_background_checks",
		ComplianceQuestion: "Does the contract require personnel to complete security awareness training and undergo background checks before accessing systems or data?",
		Rubric: "Fully Compliant: the contract requires both recurring security training and background checks prior to access. " +
			"Partially Compliant: the contract requires one of training or background checks but not both, or requires them without specifying frequency or timing relative to access. " +
			"Non-Compliant: the contract does not mention personnel training or screening.",
		BM25Query: "security awareness training background check screening personnel employee onboarding vetting",
	},
	{
		ID:                 "data_in_transit_encryption",
		ComplianceQuestion: "Does the contract require encryption of data in transit using an approved protocol (e.g. TLS 1.2 or higher) for all network transmission of covered data?",
		Rubric: "Fully Compliant: the contract mandates encryption in transit and names an approved protocol or minimum version. " +
			"Partially Compliant: the contract requires encryption in transit generically without naming a protocol or version floor. " +
			"Non-Compliant: the contract does not address encryption of data in transit.",
		BM25Query: "tls ssl encryption certificate cipher data in transit https secure transmission",
	},
	{
		ID:                 "network_authentication_authorization",
		ComplianceQuestion: "Does the contract require authenticated and authorized access to network resources, including role-based access control and multi-factor authentication for privileged accounts?",
		Rubric: "Fully Compliant: the contract requires authentication for network access, role-based or least-privilege authorization, and multi-factor authentication for privileged or administrative accounts. " +
			"Partially Compliant: the contract requires authentication and authorization generically without role-based control or MFA for privileged accounts. " +
			"Non-Compliant: the contract does not address network authentication or authorization controls.",
		BM25Query: "authentication authorization access control network firewall role based least privilege mfa admin privileged",
	},
}
