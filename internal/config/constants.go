package config

// EnvPrefix namespaces every environment variable: QDB_REPORTS_DIR, QDB_MAIL_HOST, ...
const EnvPrefix = "QDB"

const (
	AppName = "qdbreport"

	DefaultReportsDir    = "reports"
	DefaultDirectoryPath = "data/qdb.sqlite3"

	// Unit whose reports go to the head role only.
	DefaultTopLevelUnitName = "LBS"
	// Unit name that stands for every unit.
	DefaultAllUnitsName = "All units"
	// University Librarian; bound to many units but never emailed.
	DefaultExcludedStaffName = "Ginny Steel"
	// Library Materials cost center, always reported on its own sheet.
	DefaultLibraryMaterialsCode = "LM"
)

// DefaultMessageCloser is appended to every report email.
const DefaultMessageCloser = `

If you have any questions about the content of the report please contact:
Doris Wang
Director, Library Business Services
doris@library.ucla.edu

This report and email were auto-generated.
If you have technical questions about the message or the report, please contact:
Joshua Gomez
Head, Software Development & Library Systems
joshuagomez@library.ucla.edu`
