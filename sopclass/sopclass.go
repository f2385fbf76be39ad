// Package sopclass lists the SOP class and transfer syntax UIDs used when
// proposing and accepting presentation contexts.
//
// https://www.dicomlibrary.com/dicom/sop/
package sopclass

// SOPUID names one SOP class.
type SOPUID struct {
	Name string
	UID  string
}

// Transfer syntaxes. P3.5 Section 10 and Annex A.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
	JPEGBaseline                   = "1.2.840.10008.1.2.4.50"
	JPEGLosslessSV1                = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless                 = "1.2.840.10008.1.2.4.80"
	JPEG2000Lossless               = "1.2.840.10008.1.2.4.90"
	JPEG2000                       = "1.2.840.10008.1.2.4.91"
	RLELossless                    = "1.2.840.10008.1.2.5"
)

// UncompressedTransferSyntaxes are the transfer syntaxes whose data sets can
// be re-encoded element by element.
var UncompressedTransferSyntaxes = []string{
	ImplicitVRLittleEndian,
	ExplicitVRLittleEndian,
	ExplicitVRBigEndian,
}

// Verification is the abstract syntax of C-ECHO.
const Verification = "1.2.840.10008.1.1"

// VerificationClasses is used for issuing C-ECHO.
var VerificationClasses = []SOPUID{
	{Name: "VerificationSOPClass", UID: Verification},
}

// StorageClasses are the composite storage SOP classes. They are proposed for
// C-STORE, for the C-STORE sub-operations of C-GET and C-MOVE, and accepted
// by default by a provider.
var StorageClasses = []SOPUID{
	{Name: "ComputedRadiographyImageStorage", UID: "1.2.840.10008.5.1.4.1.1.1"},
	{Name: "DigitalXRayImagePresentationStorage", UID: "1.2.840.10008.5.1.4.1.1.1.1"},
	{Name: "DigitalMammographyXRayImagePresentationStorage", UID: "1.2.840.10008.5.1.4.1.1.1.2"},
	{Name: "DigitalMammographyXRayImageProcessingStorage", UID: "1.2.840.10008.5.1.4.1.1.1.2.1"},
	{Name: "DigitalIntraOralXRayImagePresentationStorage", UID: "1.2.840.10008.5.1.4.1.1.1.3"},
	{Name: "CTImageStorage", UID: "1.2.840.10008.5.1.4.1.1.2"},
	{Name: "EnhancedCTImageStorage", UID: "1.2.840.10008.5.1.4.1.1.2.1"},
	{Name: "LegacyConvertedEnhancedCTImageStorage", UID: "1.2.840.10008.5.1.4.1.1.2.2"},
	{Name: "UltrasoundMultiframeImageStorage", UID: "1.2.840.10008.5.1.4.1.1.3.1"},
	{Name: "MRImageStorage", UID: "1.2.840.10008.5.1.4.1.1.4"},
	{Name: "EnhancedMRImageStorage", UID: "1.2.840.10008.5.1.4.1.1.4.1"},
	{Name: "MRSpectroscopyStorage", UID: "1.2.840.10008.5.1.4.1.1.4.2"},
	{Name: "EnhancedMRColorImageStorage", UID: "1.2.840.10008.5.1.4.1.1.4.3"},
	{Name: "LegacyConvertedEnhancedMRImageStorage", UID: "1.2.840.10008.5.1.4.1.1.4.4"},
	{Name: "UltrasoundImageStorage", UID: "1.2.840.10008.5.1.4.1.1.6.1"},
	{Name: "EnhancedUSVolumeStorage", UID: "1.2.840.10008.5.1.4.1.1.6.2"},
	{Name: "SecondaryCaptureImageStorage", UID: "1.2.840.10008.5.1.4.1.1.7"},
	{Name: "MultiframeSingleBitSecondaryCaptureImageStorage", UID: "1.2.840.10008.5.1.4.1.1.7.1"},
	{Name: "MultiframeGrayscaleByteSecondaryCaptureImageStorage", UID: "1.2.840.10008.5.1.4.1.1.7.2"},
	{Name: "MultiframeGrayscaleWordSecondaryCaptureImageStorage", UID: "1.2.840.10008.5.1.4.1.1.7.3"},
	{Name: "MultiframeTrueColorSecondaryCaptureImageStorage", UID: "1.2.840.10008.5.1.4.1.1.7.4"},
	{Name: "TwelveLeadECGWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.1.1"},
	{Name: "GeneralECGWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.1.2"},
	{Name: "AmbulatoryECGWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.1.3"},
	{Name: "HemodynamicWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.2.1"},
	{Name: "CardiacElectrophysiologyWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.3.1"},
	{Name: "BasicVoiceAudioWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.4.1"},
	{Name: "GeneralAudioWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.4.2"},
	{Name: "ArterialPulseWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.5.1"},
	{Name: "RespiratoryWaveformStorage", UID: "1.2.840.10008.5.1.4.1.1.9.6.1"},
	{Name: "GrayscaleSoftcopyPresentationStateStorage", UID: "1.2.840.10008.5.1.4.1.1.11.1"},
	{Name: "ColorSoftcopyPresentationStateStorage", UID: "1.2.840.10008.5.1.4.1.1.11.2"},
	{Name: "PseudocolorSoftcopyPresentationStageStorage", UID: "1.2.840.10008.5.1.4.1.1.11.3"},
	{Name: "BlendingSoftcopyPresentationStateStorage", UID: "1.2.840.10008.5.1.4.1.1.11.4"},
	{Name: "XAXRFGrayscaleSoftcopyPresentationStateStorage", UID: "1.2.840.10008.5.1.4.1.1.11.5"},
	{Name: "XRayAngiographicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.12.1"},
	{Name: "EnhancedXAImageStorage", UID: "1.2.840.10008.5.1.4.1.1.12.1.1"},
	{Name: "XRayRadiofluoroscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.12.2"},
	{Name: "EnhancedXRFImageStorage", UID: "1.2.840.10008.5.1.4.1.1.12.2.1"},
	{Name: "XRay3DAngiographicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.13.1.1"},
	{Name: "XRay3DCraniofacialImageStorage", UID: "1.2.840.10008.5.1.4.1.1.13.1.2"},
	{Name: "BreastTomosynthesisImageStorage", UID: "1.2.840.10008.5.1.4.1.1.13.1.3"},
	{Name: "BreastProjectionXRayImagePresentationStorage", UID: "1.2.840.10008.5.1.4.1.1.13.1.4"},
	{Name: "BreastProjectionXRayImageProcessingStorage", UID: "1.2.840.10008.5.1.4.1.1.13.1.5"},
	{Name: "IntravascularOpticalCoherenceTomographyImagePresentationStorage", UID: "1.2.840.10008.5.1.4.1.1.14.1"},
	{Name: "IntravascularOpticalCoherenceTomographyImageProcessingStorage", UID: "1.2.840.10008.5.1.4.1.1.14.2"},
	{Name: "NuclearMedicineImageStorage", UID: "1.2.840.10008.5.1.4.1.1.20"},
	{Name: "ParametricMapStorage", UID: "1.2.840.10008.5.1.4.1.1.30"},
	{Name: "RawDataStorage", UID: "1.2.840.10008.5.1.4.1.1.66"},
	{Name: "SpatialRegistrationStorage", UID: "1.2.840.10008.5.1.4.1.1.66.1"},
	{Name: "SpatialFiducialsStorage", UID: "1.2.840.10008.5.1.4.1.1.66.2"},
	{Name: "DeformableSpatialRegistrationStorage", UID: "1.2.840.10008.5.1.4.1.1.66.3"},
	{Name: "SegmentationStorage", UID: "1.2.840.10008.5.1.4.1.1.66.4"},
	{Name: "SurfaceSegmentationStorage", UID: "1.2.840.10008.5.1.4.1.1.66.5"},
	{Name: "RealWorldValueMappingStorage", UID: "1.2.840.10008.5.1.4.1.1.67"},
	{Name: "SurfaceScanMeshStorage", UID: "1.2.840.10008.5.1.4.1.1.68.1"},
	{Name: "SurfaceScanPointCloudStorage", UID: "1.2.840.10008.5.1.4.1.1.68.2"},
	{Name: "VLEndoscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.1"},
	{Name: "VideoEndoscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.1.1"},
	{Name: "VLMicroscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.2"},
	{Name: "VideoMicroscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.2.1"},
	{Name: "VLSlideCoordinatesMicroscopicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.3"},
	{Name: "VLPhotographicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.4"},
	{Name: "VideoPhotographicImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.4.1"},
	{Name: "OphthalmicPhotography8BitImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.1"},
	{Name: "OphthalmicPhotography16BitImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.2"},
	{Name: "StereometricRelationshipStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.3"},
	{Name: "OphthalmicTomographyImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.4"},
	{Name: "WideFieldOpthalmicPhotographyStereographicProjectionImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.5"},
	{Name: "WideFieldOpthalmicPhotography3DCoordinatesImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.5.6"},
	{Name: "VLWholeSlideMicroscopyImageStorage", UID: "1.2.840.10008.5.1.4.1.1.77.1.6"},
	{Name: "LensometryMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.1"},
	{Name: "AutorefractionMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.2"},
	{Name: "KeratometryMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.3"},
	{Name: "SubjectiveRefractionMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.4"},
	{Name: "VisualAcuityMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.5"},
	{Name: "SpectaclePrescriptionReportStorage", UID: "1.2.840.10008.5.1.4.1.1.78.6"},
	{Name: "OphthalmicAxialMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.7"},
	{Name: "IntraocularLensCalculationsStorage", UID: "1.2.840.10008.5.1.4.1.1.78.8"},
	{Name: "MacularGridThicknessAndVolumeReport", UID: "1.2.840.10008.5.1.4.1.1.79.1"},
	{Name: "OphthalmicVisualFieldStaticPerimetryMeasurementsStorage", UID: "1.2.840.10008.5.1.4.1.1.80.1"},
	{Name: "OphthalmicThicknessMapStorage", UID: "1.2.840.10008.5.1.4.1.1.81.1"},
	{Name: "CornealTopographyMapStorage", UID: "1.2.840.10008.5.1.4.1.1.82.1"},
	{Name: "BasicTextSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.11"},
	{Name: "EnhancedSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.22"},
	{Name: "ComprehensiveSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.33"},
	{Name: "Comprehensive3DSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.34"},
	{Name: "ExtensibleSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.35"},
	{Name: "ProcedureSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.40"},
	{Name: "MammographyCADSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.50"},
	{Name: "KeyObjectSelectionStorage", UID: "1.2.840.10008.5.1.4.1.1.88.59"},
	{Name: "ChestCADSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.65"},
	{Name: "XRayRadiationDoseSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.67"},
	{Name: "RadiopharmaceuticalRadiationDoseSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.68"},
	{Name: "ColonCADSRStorage", UID: "1.2.840.10008.5.1.4.1.1.88.69"},
	{Name: "ImplantationPlanSRDocumentStorage", UID: "1.2.840.10008.5.1.4.1.1.88.70"},
	{Name: "EncapsulatedPDFStorage", UID: "1.2.840.10008.5.1.4.1.1.104.1"},
	{Name: "EncapsulatedCDAStorage", UID: "1.2.840.10008.5.1.4.1.1.104.2"},
	{Name: "PositronEmissionTomographyImageStorage", UID: "1.2.840.10008.5.1.4.1.1.128"},
	{Name: "EnhancedPETImageStorage", UID: "1.2.840.10008.5.1.4.1.1.130"},
	{Name: "LegacyConvertedEnhancedPETImageStorage", UID: "1.2.840.10008.5.1.4.1.1.128.1"},
	{Name: "BasicStructuredDisplayStorage", UID: "1.2.840.10008.5.1.4.1.1.131"},
	{Name: "RTImageStorage", UID: "1.2.840.10008.5.1.4.1.1.481.1"},
	{Name: "RTDoseStorage", UID: "1.2.840.10008.5.1.4.1.1.481.2"},
	{Name: "RTStructureSetStorage", UID: "1.2.840.10008.5.1.4.1.1.481.3"},
	{Name: "RTBeamsTreatmentRecordStorage", UID: "1.2.840.10008.5.1.4.1.1.481.4"},
	{Name: "RTPlanStorage", UID: "1.2.840.10008.5.1.4.1.1.481.5"},
	{Name: "RTBrachyTreatmentRecordStorage", UID: "1.2.840.10008.5.1.4.1.1.481.6"},
	{Name: "RTTreatmentSummaryRecordStorage", UID: "1.2.840.10008.5.1.4.1.1.481.7"},
	{Name: "RTIonPlanStorage", UID: "1.2.840.10008.5.1.4.1.1.481.8"},
	{Name: "RTIonBeamsTreatmentRecordStorage", UID: "1.2.840.10008.5.1.4.1.1.481.9"},
	{Name: "RTBeamsDeliveryInstructionStorage", UID: "1.2.840.10008.5.1.4.34.7"},
	{Name: "GenericImplantTemplateStorage", UID: "1.2.840.10008.5.1.4.43.1"},
	{Name: "ImplantAssemblyTemplateStorage", UID: "1.2.840.10008.5.1.4.44.1"},
	{Name: "ImplantTemplateGroupStorage", UID: "1.2.840.10008.5.1.4.45.1"},
}

// QRFindClasses are used for issuing C-FIND.
var QRFindClasses = []SOPUID{
	{Name: "PatientRootQueryRetrieveInformationModelFind", UID: "1.2.840.10008.5.1.4.1.2.1.1"},
	{Name: "StudyRootQueryRetrieveInformationModelFind", UID: "1.2.840.10008.5.1.4.1.2.2.1"},
	{Name: "PatientStudyOnlyQueryRetrieveInformationModelFind", UID: "1.2.840.10008.5.1.4.1.2.3.1"},
	{Name: "ModalityWorklistInformationFind", UID: "1.2.840.10008.5.1.4.31"},
}

// QRMoveClasses are used for issuing C-MOVE.
var QRMoveClasses = []SOPUID{
	{Name: "PatientRootQueryRetrieveInformationModelMove", UID: "1.2.840.10008.5.1.4.1.2.1.2"},
	{Name: "StudyRootQueryRetrieveInformationModelMove", UID: "1.2.840.10008.5.1.4.1.2.2.2"},
	{Name: "PatientStudyOnlyQueryRetrieveInformationModelMove", UID: "1.2.840.10008.5.1.4.1.2.3.2"},
}

// QRGetClasses are used for issuing C-GET. The requestor must also propose
// the storage classes it wants to receive, with the SCP role.
var QRGetClasses = []SOPUID{
	{Name: "PatientRootQueryRetrieveInformationModelGet", UID: "1.2.840.10008.5.1.4.1.2.1.3"},
	{Name: "StudyRootQueryRetrieveInformationModelGet", UID: "1.2.840.10008.5.1.4.1.2.2.3"},
	{Name: "PatientStudyOnlyQueryRetrieveInformationModelGet", UID: "1.2.840.10008.5.1.4.1.2.3.3"},
}

// NormalizedClasses are served with the N-* services: storage commitment,
// modality performed procedure step, and basic print management.
var NormalizedClasses = []SOPUID{
	{Name: "StorageCommitmentPushModel", UID: "1.2.840.10008.1.20.1"},
	{Name: "ModalityPerformedProcedureStep", UID: "1.2.840.10008.3.1.2.3.3"},
	{Name: "ModalityPerformedProcedureStepRetrieve", UID: "1.2.840.10008.3.1.2.3.4"},
	{Name: "ModalityPerformedProcedureStepNotification", UID: "1.2.840.10008.3.1.2.3.5"},
	{Name: "BasicFilmSession", UID: "1.2.840.10008.5.1.1.1"},
	{Name: "BasicFilmBox", UID: "1.2.840.10008.5.1.1.2"},
	{Name: "BasicGrayscaleImageBox", UID: "1.2.840.10008.5.1.1.4"},
	{Name: "BasicColorImageBox", UID: "1.2.840.10008.5.1.1.4.1"},
	{Name: "BasicGrayscalePrintManagementMeta", UID: "1.2.840.10008.5.1.1.9"},
	{Name: "Printer", UID: "1.2.840.10008.5.1.1.16"},
	{Name: "BasicColorPrintManagementMeta", UID: "1.2.840.10008.5.1.1.18"},
	{Name: "PrintJob", UID: "1.2.840.10008.5.1.1.14"},
	{Name: "PresentationLUT", UID: "1.2.840.10008.5.1.1.23"},
}

var byUID = map[string]SOPUID{}

func init() {
	for _, list := range [][]SOPUID{
		VerificationClasses, StorageClasses, QRFindClasses,
		QRMoveClasses, QRGetClasses, NormalizedClasses} {
		for _, c := range list {
			byUID[c.UID] = c
		}
	}
}

// Lookup finds a SOP class by UID.
func Lookup(uid string) (SOPUID, bool) {
	c, ok := byUID[uid]
	return c, ok
}

// IsStorage is true if uid is one of StorageClasses.
func IsStorage(uid string) bool {
	for _, c := range StorageClasses {
		if c.UID == uid {
			return true
		}
	}
	return false
}

// UIDs extracts the UIDs of the given lists, in order.
func UIDs(lists ...[]SOPUID) []string {
	var uids []string
	for _, list := range lists {
		for _, c := range list {
			uids = append(uids, c.UID)
		}
	}
	return uids
}
