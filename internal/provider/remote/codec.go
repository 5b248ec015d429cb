// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package remote

import (
	"dbscript/cli/internal/scripting"

	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct so the host protocol needs no
// generated code. Field names are snake_case.

type scriptRequest struct {
	ConnectionURI string
	Operation     scripting.Operation
	Metadata      scripting.ObjectMetadata
	Params        scripting.ParamDetails
}

func encodeRequest(r scriptRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"connection_uri": r.ConnectionURI,
		"operation":      r.Operation.String(),
		"metadata": map[string]any{
			"type":      r.Metadata.MetadataType.String(),
			"type_name": r.Metadata.MetadataTypeName,
			"urn":       r.Metadata.URN,
			"name":      r.Metadata.Name,
			"schema":    r.Metadata.Schema,
		},
		"params": map[string]any{
			"script_compatibility_option":    r.Params.ScriptCompatibilityOption,
			"target_database_engine_edition": r.Params.TargetDatabaseEngineEdition,
			"target_database_engine_type":    r.Params.TargetDatabaseEngineType,
			"select_limit":                   r.Params.SelectLimit,
		},
	})
}

func decodeRequest(s *structpb.Struct) (scriptRequest, error) {
	f := s.GetFields()
	op, err := scripting.ParseOperation(f["operation"].GetStringValue())
	if err != nil {
		return scriptRequest{}, err
	}
	md := f["metadata"].GetStructValue().GetFields()
	kind, err := scripting.ParseMetadataType(md["type"].GetStringValue())
	if err != nil {
		return scriptRequest{}, err
	}
	pf := f["params"].GetStructValue().GetFields()
	return scriptRequest{
		ConnectionURI: f["connection_uri"].GetStringValue(),
		Operation:     op,
		Metadata: scripting.ObjectMetadata{
			MetadataType:     kind,
			MetadataTypeName: md["type_name"].GetStringValue(),
			URN:              md["urn"].GetStringValue(),
			Name:             md["name"].GetStringValue(),
			Schema:           md["schema"].GetStringValue(),
		},
		Params: scripting.ParamDetails{
			ScriptCompatibilityOption:   pf["script_compatibility_option"].GetStringValue(),
			TargetDatabaseEngineEdition: pf["target_database_engine_edition"].GetStringValue(),
			TargetDatabaseEngineType:    pf["target_database_engine_type"].GetStringValue(),
			SelectLimit:                 int(pf["select_limit"].GetNumberValue()),
		},
	}, nil
}

func encodeResult(r *scripting.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"operation_id": r.OperationID,
		"script":       r.Script,
	})
}

func decodeResult(s *structpb.Struct) *scripting.Result {
	f := s.GetFields()
	return &scripting.Result{
		OperationID: f["operation_id"].GetStringValue(),
		Script:      f["script"].GetStringValue(),
	}
}

func encodeCompletion(r *scripting.CompleteResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"operation_id":  r.OperationID,
		"has_error":     r.HasError,
		"error_message": r.ErrorMessage,
		"error_details": r.ErrorDetails,
		"canceled":      r.Canceled,
		"success":       r.Success,
	})
}

func decodeCompletion(s *structpb.Struct) *scripting.CompleteResult {
	f := s.GetFields()
	return &scripting.CompleteResult{
		OperationID:  f["operation_id"].GetStringValue(),
		HasError:     f["has_error"].GetBoolValue(),
		ErrorMessage: f["error_message"].GetStringValue(),
		ErrorDetails: f["error_details"].GetStringValue(),
		Canceled:     f["canceled"].GetBoolValue(),
		Success:      f["success"].GetBoolValue(),
	}
}
